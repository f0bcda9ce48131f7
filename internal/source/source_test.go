package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLeads(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing leads file: %v", err)
	}
	return path
}

func TestFileSourceWrappedDocument(t *testing.T) {
	path := writeLeads(t, `{
		"jobs": [
			{"title": "Data Engineer", "company": "Acme", "url": "https://a.test/1", "discovered_at": "2026-08-20T09:00:00Z"},
			{"title": "ML Engineer", "company": "Globex", "url": "https://a.test/2", "source": "linkedin"}
		]
	}`)

	raws, err := NewFile(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 records, got %d", len(raws))
	}

	want := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	if !raws[0].DiscoveredAt.Equal(want) {
		t.Fatalf("expected parsed timestamp, got %v", raws[0].DiscoveredAt)
	}
	if raws[0].Source != "file:leads.json" {
		t.Fatalf("expected source to default to the file name, got %q", raws[0].Source)
	}
	if raws[1].Source != "linkedin" {
		t.Fatalf("expected explicit source to be kept, got %q", raws[1].Source)
	}
}

func TestFileSourceBareArray(t *testing.T) {
	path := writeLeads(t, `[{"title": "Quant Researcher", "company": "Optiver", "url": "https://a.test/3"}]`)

	raws, err := NewFile(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 1 || raws[0].Company != "Optiver" {
		t.Fatalf("unexpected records: %+v", raws)
	}
}

func TestFileSourceInvalidJSON(t *testing.T) {
	path := writeLeads(t, `{"jobs": [`)

	if _, err := NewFile(path).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}
