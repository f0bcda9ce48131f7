package posting

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Raw is a posting record as delivered by a source, before identity
// normalization. Title, Company and URL are required; everything else is
// optional.
type Raw struct {
	Title        string    `json:"title" mapstructure:"title"`
	Company      string    `json:"company" mapstructure:"company"`
	Location     string    `json:"location,omitempty" mapstructure:"location"`
	URL          string    `json:"url" mapstructure:"url"`
	Description  string    `json:"description,omitempty" mapstructure:"description"`
	Source       string    `json:"source,omitempty" mapstructure:"source"`
	DiscoveredAt time.Time `json:"discovered_at,omitempty" mapstructure:"discovered_at"`
}

// Posting is an accepted job posting. It is immutable after ingestion: the ID
// is a pure function of the normalized title, company and canonical URL, so
// re-ingesting the same posting always produces the same ID.
type Posting struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location,omitempty"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Source       string    `json:"source,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// MalformedPostingError reports a raw record that cannot be ingested because a
// required identity field is missing.
type MalformedPostingError struct {
	Field string
}

func (e *MalformedPostingError) Error() string {
	return fmt.Sprintf("malformed posting: missing required field %q", e.Field)
}

// New validates a raw record and turns it into an immutable Posting. The
// check runs before any hashing so malformed input never produces an ID.
func New(raw Raw) (*Posting, error) {
	if strings.TrimSpace(raw.Title) == "" {
		return nil, &MalformedPostingError{Field: "title"}
	}
	if strings.TrimSpace(raw.Company) == "" {
		return nil, &MalformedPostingError{Field: "company"}
	}

	discovered := raw.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now().UTC()
	}

	return &Posting{
		ID:           Fingerprint(raw.Title, raw.Company, raw.URL),
		Title:        strings.TrimSpace(raw.Title),
		Company:      strings.TrimSpace(raw.Company),
		Location:     strings.TrimSpace(raw.Location),
		URL:          strings.TrimSpace(raw.URL),
		Description:  raw.Description,
		Source:       strings.TrimSpace(raw.Source),
		DiscoveredAt: discovered,
	}, nil
}

// Fingerprint derives the posting ID from its normalized identity fields.
// Title and company are lower-cased with collapsed whitespace; the URL loses
// its query string and fragment. Two ingestions of the same posting always
// collide to the same ID.
func Fingerprint(title, company, rawURL string) string {
	key := normalize(title) + "|" + normalize(company) + "|" + canonicalURL(rawURL)
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)[:12]
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
