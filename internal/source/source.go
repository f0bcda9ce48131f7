// Package source defines the collaborator that yields raw posting records.
// Acquisition itself (scraping, APIs) lives outside this system; the engine
// only consumes the records a source produces.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jobhunter/internal/posting"

	"github.com/mitchellh/mapstructure"
)

// Source yields externally discovered raw posting records.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]posting.Raw, error)
}

// FileSource reads raw postings from a JSON leads file. Both a bare array and
// a document wrapped as {"jobs": [...]} are accepted; timestamps may be
// RFC 3339 strings.
type FileSource struct {
	path string
}

func NewFile(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return "file:" + filepath.Base(s.path)
}

func (s *FileSource) Fetch(_ context.Context) ([]posting.Raw, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading leads file: %w", err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parsing leads file %q: %w", s.path, err)
	}

	raws := make([]posting.Raw, 0, len(records))
	for i, record := range records {
		raw, err := decodeRecord(record)
		if err != nil {
			return nil, fmt.Errorf("leads file %q record %d: %w", s.path, i, err)
		}
		if raw.Source == "" {
			raw.Source = s.Name()
		}
		raws = append(raws, raw)
	}

	return raws, nil
}

func decodeRecords(data []byte) ([]map[string]any, error) {
	var wrapped struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Jobs != nil {
		return wrapped.Jobs, nil
	}

	var bare []map[string]any
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func decodeRecord(record map[string]any) (posting.Raw, error) {
	var raw posting.Raw

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:     &raw,
	})
	if err != nil {
		return raw, err
	}

	if err := decoder.Decode(record); err != nil {
		return raw, err
	}
	return raw, nil
}
