package posting

import (
	"errors"
	"testing"
	"time"
)

func TestFingerprintNormalizesIdentityFields(t *testing.T) {
	base := Fingerprint("Data Engineer", "Acme", "https://jobs.acme.test/123")

	variants := []struct {
		name    string
		title   string
		company string
		url     string
	}{
		{"case folded", "data ENGINEER", "ACME", "https://jobs.acme.test/123"},
		{"collapsed whitespace", "  Data   Engineer ", " Acme ", "https://jobs.acme.test/123"},
		{"query stripped", "Data Engineer", "Acme", "https://jobs.acme.test/123?utm_source=feed&ref=abc"},
		{"fragment stripped", "Data Engineer", "Acme", "https://jobs.acme.test/123#apply"},
	}

	for _, v := range variants {
		if got := Fingerprint(v.title, v.company, v.url); got != base {
			t.Fatalf("%s: fingerprint %q differs from base %q", v.name, got, base)
		}
	}

	other := Fingerprint("Data Engineer", "Globex", "https://jobs.acme.test/123")
	if other == base {
		t.Fatalf("different companies must not collide")
	}
}

func TestNewRejectsMissingIdentityFields(t *testing.T) {
	cases := []struct {
		name  string
		raw   Raw
		field string
	}{
		{"missing title", Raw{Company: "Acme", URL: "https://a.test"}, "title"},
		{"blank title", Raw{Title: "   ", Company: "Acme"}, "title"},
		{"missing company", Raw{Title: "Data Engineer"}, "company"},
	}

	for _, c := range cases {
		_, err := New(c.raw)
		var malformed *MalformedPostingError
		if !errors.As(err, &malformed) {
			t.Fatalf("%s: expected MalformedPostingError, got %v", c.name, err)
		}
		if malformed.Field != c.field {
			t.Fatalf("%s: expected field %q, got %q", c.name, c.field, malformed.Field)
		}
	}
}

func TestNewPreservesFieldsAndDefaultsDiscoveredAt(t *testing.T) {
	discovered := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	p, err := New(Raw{
		Title:        " Data Engineer ",
		Company:      "Acme",
		Location:     "Amsterdam",
		URL:          "https://jobs.acme.test/123",
		Description:  "Python, SQL",
		Source:       "linkedin",
		DiscoveredAt: discovered,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Title != "Data Engineer" || p.Company != "Acme" {
		t.Fatalf("expected trimmed identity fields, got %q / %q", p.Title, p.Company)
	}
	if !p.DiscoveredAt.Equal(discovered) {
		t.Fatalf("expected discovered_at to be preserved")
	}
	if p.ID == "" || len(p.ID) != 12 {
		t.Fatalf("expected 12 character id, got %q", p.ID)
	}

	defaulted, err := New(Raw{Title: "X", Company: "Y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaulted.DiscoveredAt.IsZero() {
		t.Fatalf("expected discovered_at to default to now")
	}
}
