// Package checklist renders the application checklist: a state.json document
// plus a static HTML page, both regenerated from tracker state and editable
// through the review server.
package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"jobhunter/internal/tracker"

	"go.uber.org/zap"
)

//go:embed checklist.html.tmpl
var pageTemplate string

const (
	StateFileName = "state.json"
	PageFileName  = "checklist.html"
)

// Entry is one checklist row. Applied is the only field the reviewer edits;
// everything else is regenerated from tracker state on every export.
type Entry struct {
	Title              string  `json:"title"`
	Company            string  `json:"company"`
	URL                string  `json:"url,omitempty"`
	FinalScore         float64 `json:"final_score"`
	ResumeArtifactPath string  `json:"resume_artifact_path,omitempty"`
	Applied            bool    `json:"applied"`
}

// StateDocument is the whole checklist, keyed by posting ID. Writes replace
// the entire document; there are no per-entry updates.
type StateDocument struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Jobs        map[string]Entry `json:"jobs"`
}

// Exporter regenerates the checklist artifacts from a tracker store.
type Exporter struct {
	store  *tracker.Store
	dir    string
	logger *zap.Logger

	tmpl *template.Template
	now  func() time.Time
}

func NewExporter(store *tracker.Store, dir string, logger *zap.Logger) (*Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("checklist").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse checklist template: %w", err)
	}

	return &Exporter{
		store:  store,
		dir:    dir,
		logger: logger,
		tmpl:   tmpl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// StatePath is where Export writes the JSON document.
func (e *Exporter) StatePath() string {
	return filepath.Join(e.dir, StateFileName)
}

// PagePath is where Export writes the HTML page.
func (e *Exporter) PagePath() string {
	return filepath.Join(e.dir, PageFileName)
}

// BuildDocument assembles the checklist from every job that reached
// resume_ready or applied.
func (e *Exporter) BuildDocument() StateDocument {
	doc := StateDocument{
		GeneratedAt: e.now(),
		Jobs:        make(map[string]Entry),
	}

	for _, job := range e.store.Jobs() {
		if job.Status != tracker.StatusResumeReady && job.Status != tracker.StatusApplied {
			continue
		}
		doc.Jobs[job.ID()] = Entry{
			Title:              job.Posting.Title,
			Company:            job.Posting.Company,
			URL:                job.Posting.URL,
			FinalScore:         job.FinalScore,
			ResumeArtifactPath: job.ResumeArtifactPath,
			Applied:            job.Status == tracker.StatusApplied,
		}
	}

	return doc
}

// Export writes state.json and checklist.html. Both writes are atomic, so a
// crash never leaves a half-written checklist behind.
func (e *Exporter) Export() error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create checklist directory: %w", err)
	}

	doc := e.BuildDocument()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checklist state: %w", err)
	}
	if err := writeAtomic(e.StatePath(), data); err != nil {
		return err
	}

	page, err := e.renderPage(doc)
	if err != nil {
		return err
	}
	if err := writeAtomic(e.PagePath(), page); err != nil {
		return err
	}

	e.logger.Info("checklist exported",
		zap.String("dir", e.dir),
		zap.Int("entries", len(doc.Jobs)),
	)

	return nil
}

// SyncEdits applies a reviewer-edited document back to the tracker: every
// entry flipped to applied moves its job resume_ready -> applied. Entries for
// unknown jobs and un-flips of already-applied jobs are ignored. The tracker
// is committed and the checklist re-exported when anything changed.
func (e *Exporter) SyncEdits(doc StateDocument) (int, error) {
	changed := 0
	for id, entry := range doc.Jobs {
		job := e.store.Get(id)
		if job == nil {
			e.logger.Warn("checklist entry for unknown job ignored", zap.String("posting_id", id))
			continue
		}
		if !entry.Applied || job.Status != tracker.StatusResumeReady {
			continue
		}
		if err := e.store.MarkApplied(id, e.now()); err != nil {
			return changed, fmt.Errorf("apply checklist edit for %s: %w", id, err)
		}
		changed++
	}

	if changed == 0 {
		return 0, nil
	}

	if err := e.store.Commit(); err != nil {
		return changed, err
	}
	if err := e.Export(); err != nil {
		return changed, err
	}

	e.logger.Info("checklist edits applied", zap.Int("jobs_applied", changed))

	return changed, nil
}

type pageRow struct {
	ID    string
	Entry Entry
}

func (e *Exporter) renderPage(doc StateDocument) ([]byte, error) {
	// The page shows rows in the store's ranking order; the JSON document
	// stays keyed by ID.
	var rows []pageRow
	for _, job := range e.store.Jobs() {
		if entry, ok := doc.Jobs[job.ID()]; ok {
			rows = append(rows, pageRow{ID: job.ID(), Entry: entry})
		}
	}

	var buf bytes.Buffer
	err := e.tmpl.Execute(&buf, struct {
		GeneratedAt time.Time
		Rows        []pageRow
	}{GeneratedAt: doc.GeneratedAt, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("render checklist page: %w", err)
	}

	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
