package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jobhunter/internal/ai"
	"jobhunter/internal/ai/gemini"
	"jobhunter/internal/checklist"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/logger"
	"jobhunter/internal/pipeline"
	"jobhunter/internal/scorer"
	"jobhunter/internal/secrets"
	"jobhunter/internal/source"
	"jobhunter/internal/tracker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of job postings and refresh the checklist",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "json file with job postings to process")
	runCmd.MarkFlagRequired("input")

	viper.BindPFlag("input", runCmd.Flags().Lookup("input"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	zlog.Info("starting the jobhunter", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	zlog.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		zlog.Fatal("config is required")
	}

	engine, err := filter.New(config.Filter, zlog)
	if err != nil {
		zlog.Fatal("building the hard-filter engine", zap.Error(err))
	}

	cls, err := classifier.New(config.Classifier)
	if err != nil {
		zlog.Fatal("building the role classifier", zap.Error(err))
	}

	store, err := tracker.Open(config.StateFile, config.ReviewThreshold, zlog)
	if err != nil {
		zlog.Fatal("opening the tracker state", zap.Error(err))
	}

	external, err := newExternalScorer(ctx, config, zlog)
	if err != nil {
		zlog.Fatal(
			"building the external scorer",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	aggregator := scorer.New(config.Scoring, external, zlog)

	src := source.NewFile(viper.GetString("input"))
	p := pipeline.New(src, engine, cls, aggregator, store, zlog)

	summary, err := p.Run(ctx)
	if err != nil {
		zlog.Fatal("batch run failed", zap.Error(err))
	}

	exporter, err := checklist.NewExporter(store, config.ChecklistDir, zlog)
	if err != nil {
		zlog.Fatal("building the checklist exporter", zap.Error(err))
	}
	if err := exporter.Export(); err != nil {
		zlog.Fatal("exporting the checklist", zap.Error(err))
	}

	zlog.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("postings", summary.Total),
		zap.Int("new", summary.New),
		zap.Int("review_queued", summary.ReviewQueued),
		zap.Int("tokens_used", summary.TokensUsed),
		zap.String("checklist", exporter.PagePath()),
	)
}

// newExternalScorer wires the configured AI provider, or returns nil when AI
// scoring is disabled.
func newExternalScorer(ctx context.Context, config *Config, zlog *zap.Logger) (ai.Scorer, error) {
	if config.AI == nil || !config.AI.Enabled {
		return nil, nil
	}

	if !strings.EqualFold(config.AI.Provider, "gemini") {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	if config.Profile == nil {
		return nil, errors.New("a candidate profile is required when ai scoring is enabled")
	}

	gcfg := config.AI.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	key, err := resolveGeminiKey(gcfg)
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, key, gcfg.Model)
	if err != nil {
		return nil, err
	}

	reference := ""
	if config.ReferenceFile != "" {
		data, err := os.ReadFile(config.ReferenceFile)
		if err != nil {
			return nil, fmt.Errorf("read reference document: %w", err)
		}
		reference = string(data)
	}

	aiLogger := logger.WithCommonFields(zlog, config.AI.Provider, generator.Model())

	return gemini.NewScorer(generator, *config.Profile, reference, gemini.ScorerOptions{
		CharBudget:   gcfg.MaxChars,
		Timeout:      gcfg.Timeout,
		MaxLogLength: gcfg.MaxLogLength,
	}, aiLogger), nil
}

func resolveGeminiKey(gcfg *GeminiConfig) (string, error) {
	keyFile := strings.TrimSpace(gcfg.APIKeyFile)
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("ai.gemini.api-key-file"))
	}

	return secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: keyFile,
		Env:  "GEMINI_API_KEY",
	})
}
