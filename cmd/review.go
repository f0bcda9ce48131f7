package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jobhunter/internal/checklist"
	"jobhunter/internal/logger"
	"jobhunter/internal/tracker"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes       = "Yes"
	PromptNo        = "No"
	PromptBack      = "back"
	PromptSyncEdits = "Sync checklist edits"
	PromptAttach    = "Attach a resume artifact"
	PromptReject    = "Reject a job"
	PromptExit      = "Exit"
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review jobs waiting for an application decision",
	Run: func(_ *cobra.Command, _ []string) {
		review()
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func review() {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	store, err := tracker.Open(config.StateFile, config.ReviewThreshold, zlog)
	if err != nil {
		zlog.Fatal("opening the tracker state", zap.Error(err))
	}

	exporter, err := checklist.NewExporter(store, config.ChecklistDir, zlog)
	if err != nil {
		zlog.Fatal("building the checklist exporter", zap.Error(err))
	}

	for {
		if err := reviewOnce(store, exporter, zlog); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			zlog.Fatal("exiting", zap.Error(err))
		}
	}
}

func reviewOnce(store *tracker.Store, exporter *checklist.Exporter, zlog *zap.Logger) error {
	ready := store.ByStatus(tracker.StatusResumeReady)
	pending := store.ByStatus(tracker.StatusResumePending)

	zlog.Info("jobs under review",
		zap.Int("resume_ready", len(ready)),
		zap.Int("resume_pending", len(pending)),
	)

	items := make([]string, 0, len(ready)+3)
	for _, job := range ready {
		items = append(items, jobLabel(job))
	}
	if len(pending) > 0 {
		items = append(items, PromptAttach)
	}
	items = append(items, PromptReject, PromptSyncEdits, PromptExit)

	prompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: items,
	}

	_, selected, err := prompt.Run()
	if err != nil {
		return err
	}

	switch selected {
	case PromptExit:
		zlog.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptSyncEdits:
		return syncChecklistEdits(exporter, zlog)
	case PromptAttach:
		return attachArtifact(store, exporter, pending, zlog)
	case PromptReject:
		return rejectJob(store, exporter, zlog)
	default:
		return confirmApplied(store, exporter, selected, ready, zlog)
	}
}

func jobLabel(job *tracker.Job) string {
	return fmt.Sprintf("%s %.1f %s / %s / %s",
		job.ID(), job.FinalScore, job.Posting.Title, job.Posting.Company, job.Posting.URL,
	)
}

func confirmApplied(store *tracker.Store, exporter *checklist.Exporter, selected string, ready []*tracker.Job, zlog *zap.Logger) error {
	jobID := strings.Split(selected, " ")[0]

	var job *tracker.Job
	for _, candidate := range ready {
		if candidate.ID() == jobID {
			job = candidate
			break
		}
	}
	if job == nil {
		return fmt.Errorf("job %s is not under review", jobID)
	}

	confirm := promptui.Select{
		Label: fmt.Sprintf("Mark %q at %s as applied?", job.Posting.Title, job.Posting.Company),
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := confirm.Run()
	if err != nil {
		return err
	}
	if answer != PromptYes {
		return nil
	}

	if err := store.MarkApplied(job.ID(), time.Now().UTC()); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	if err := exporter.Export(); err != nil {
		return err
	}

	zlog.Info("job marked as applied",
		zap.String("posting_id", job.ID()),
		zap.String("title", job.Posting.Title),
		zap.String("company", job.Posting.Company),
	)

	return nil
}

// attachArtifact records an externally produced resume file for a pending job
// and moves it to resume_ready.
func attachArtifact(store *tracker.Store, exporter *checklist.Exporter, pending []*tracker.Job, zlog *zap.Logger) error {
	items := make([]string, 0, len(pending)+1)
	for _, job := range pending {
		items = append(items, jobLabel(job))
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job waiting for a resume",
		Items: append(items, PromptBack),
	}
	_, selected, err := jobPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}
	jobID := strings.Split(selected, " ")[0]

	pathPrompt := promptui.Prompt{
		Label: "Resume artifact path",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("path must not be empty")
			}
			return nil
		},
	}
	path, err := pathPrompt.Run()
	if err != nil {
		return err
	}

	if err := store.SetResumeArtifact(jobID, path); err != nil {
		return err
	}
	if err := store.Transition(jobID, tracker.StatusResumeReady); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	if err := exporter.Export(); err != nil {
		return err
	}

	zlog.Info("resume artifact attached",
		zap.String("posting_id", jobID),
		zap.String("path", path),
	)

	return nil
}

// rejectJob lets the reviewer push any non-terminal tracked job to
// rejected_by_reviewer.
func rejectJob(store *tracker.Store, exporter *checklist.Exporter, zlog *zap.Logger) error {
	var rejectable []*tracker.Job
	for _, status := range []tracker.Status{tracker.StatusScored, tracker.StatusResumePending, tracker.StatusResumeReady} {
		rejectable = append(rejectable, store.ByStatus(status)...)
	}
	if len(rejectable) == 0 {
		zlog.Info("no jobs to reject")
		return nil
	}

	items := make([]string, 0, len(rejectable)+1)
	for _, job := range rejectable {
		items = append(items, jobLabel(job))
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job to reject",
		Items: append(items, PromptBack),
	}
	_, selected, err := jobPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}
	jobID := strings.Split(selected, " ")[0]

	if err := store.Transition(jobID, tracker.StatusRejected); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	if err := exporter.Export(); err != nil {
		return err
	}

	zlog.Info("job rejected", zap.String("posting_id", jobID))

	return nil
}

// syncChecklistEdits pulls edits made directly to state.json back into the
// tracker.
func syncChecklistEdits(exporter *checklist.Exporter, zlog *zap.Logger) error {
	data, err := os.ReadFile(exporter.StatePath())
	if errors.Is(err, os.ErrNotExist) {
		zlog.Info("no checklist state to sync", zap.String("path", exporter.StatePath()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checklist state: %w", err)
	}

	var doc checklist.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("checklist state %s is corrupt: %w", exporter.StatePath(), err)
	}

	changed, err := exporter.SyncEdits(doc)
	if err != nil {
		return err
	}

	zlog.Info("checklist edits synced", zap.Int("jobs_applied", changed))

	return nil
}
