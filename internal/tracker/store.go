package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"jobhunter/internal/posting"

	"go.uber.org/zap"
)

const storeVersion = 1

// Store holds every tracked job, keyed by posting fingerprint, and persists
// the whole set to a single JSON file. Not safe for concurrent use.
type Store struct {
	path            string
	reviewThreshold float64
	logger          *zap.Logger

	jobs map[string]*Job
	now  func() time.Time
}

type storeFile struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Jobs    map[string]*Job `json:"jobs"`
}

// Open loads the store from path. A missing file yields an empty store; a
// file that exists but does not parse is a hard error, because silently
// starting fresh would lose the application history.
func Open(path string, reviewThreshold float64, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		path:            path,
		reviewThreshold: reviewThreshold,
		logger:          logger,
		jobs:            make(map[string]*Job),
		now:             func() time.Time { return time.Now().UTC() },
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("tracker state file not found, starting empty", zap.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracker state: %w", err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tracker state %s is corrupt: %w", path, err)
	}
	if file.Jobs != nil {
		s.jobs = file.Jobs
	}

	for id, job := range s.jobs {
		if _, err := ParseStatus(string(job.Status)); err != nil {
			return nil, fmt.Errorf("tracker state %s: job %s: %w", path, id, err)
		}
	}

	logger.Debug("tracker state loaded", zap.String("path", path), zap.Int("jobs", len(s.jobs)))

	return s, nil
}

// Ingest adds a raw posting to the store. The returned bool is false when the
// posting's fingerprint is already tracked; the existing job is returned
// untouched and its status does not move.
func (s *Store) Ingest(raw posting.Raw) (*Job, bool, error) {
	p, err := posting.New(raw)
	if err != nil {
		return nil, false, err
	}

	if existing, ok := s.jobs[p.ID]; ok {
		s.logger.Debug("duplicate posting ignored",
			zap.String("posting_id", p.ID),
			zap.String("title", p.Title),
			zap.String("company", p.Company),
		)
		return existing, false, nil
	}

	now := s.now()
	job := &Job{
		Posting:   *p,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[p.ID] = job

	return job, true, nil
}

// Get returns the tracked job for id, or nil.
func (s *Store) Get(id string) *Job {
	return s.jobs[id]
}

// Transition moves a job to the given status after checking the state
// machine and the status-specific preconditions.
func (s *Store) Transition(id string, to Status) error {
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s is not tracked", id)
	}

	if !IsTransitionAllowed(job.Status, to) {
		reason := ""
		if IsTerminal(job.Status) {
			reason = "state is terminal"
		}
		return &InvalidTransitionError{From: job.Status, To: to, Reason: reason}
	}

	if err := s.checkPreconditions(job, to); err != nil {
		return err
	}

	s.logger.Debug("job transition",
		zap.String("posting_id", id),
		zap.String("from", string(job.Status)),
		zap.String("to", string(to)),
	)

	job.Status = to
	job.UpdatedAt = s.now()

	return nil
}

func (s *Store) checkPreconditions(job *Job, to Status) error {
	fail := func(reason string) error {
		return &InvalidTransitionError{From: job.Status, To: to, Reason: reason}
	}

	switch to {
	case StatusFilteredOut:
		if job.Verdict == nil || job.Verdict.Passed {
			return fail("requires a failing filter verdict")
		}
	case StatusScored:
		if job.Verdict == nil || !job.Verdict.Passed {
			return fail("requires a passing filter verdict")
		}
		if job.Classification == nil {
			return fail("requires a classification")
		}
	case StatusResumePending:
		if job.FinalScore < s.reviewThreshold {
			return fail(fmt.Sprintf("final score %.2f is below the review threshold %.2f", job.FinalScore, s.reviewThreshold))
		}
	case StatusResumeReady:
		if strings.TrimSpace(job.ResumeArtifactPath) == "" {
			return fail("requires a resume artifact path")
		}
	case StatusApplied:
		if strings.TrimSpace(job.ResumeArtifactPath) == "" {
			return fail("requires a resume artifact path")
		}
		if job.AppliedAt == nil {
			return fail("requires an application timestamp")
		}
	}

	return nil
}

// SetResumeArtifact records the tailored resume location for a job.
func (s *Store) SetResumeArtifact(id, path string) error {
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s is not tracked", id)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("resume artifact path must not be empty")
	}

	job.ResumeArtifactPath = path
	job.UpdatedAt = s.now()

	return nil
}

// MarkApplied stamps the application time and moves the job to applied. The
// timestamp is set before the transition so the precondition check sees it.
func (s *Store) MarkApplied(id string, at time.Time) error {
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s is not tracked", id)
	}

	if at.IsZero() {
		at = s.now()
	}
	prev := job.AppliedAt
	job.AppliedAt = &at

	if err := s.Transition(id, StatusApplied); err != nil {
		job.AppliedAt = prev
		return err
	}

	return nil
}

// Commit writes the full job set to disk atomically: the document lands in a
// temp file first and replaces the state file by rename, so a crash mid-write
// leaves the previous state intact.
func (s *Store) Commit() error {
	file := storeFile{
		Version: storeVersion,
		SavedAt: s.now(),
		Jobs:    s.jobs,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Jobs returns every tracked job ordered by descending final score, ties
// broken by ID so the order is stable across runs.
func (s *Store) Jobs() []*Job {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].FinalScore != jobs[j].FinalScore {
			return jobs[i].FinalScore > jobs[j].FinalScore
		}
		return jobs[i].ID() < jobs[j].ID()
	})
	return jobs
}

// ByStatus returns the tracked jobs in the given status, in Jobs() order.
func (s *Store) ByStatus(status Status) []*Job {
	var out []*Job
	for _, job := range s.Jobs() {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out
}

// ReviewThreshold is the final score at or above which a job qualifies for
// resume tailoring.
func (s *Store) ReviewThreshold() float64 {
	return s.reviewThreshold
}

// Stats counts the tracked jobs per status.
func (s *Store) Stats() map[Status]int {
	stats := make(map[Status]int)
	for _, job := range s.jobs {
		stats[job.Status]++
	}
	return stats
}
