package cmd

import (
	"log"
	"time"

	"jobhunter/internal/ai"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/scorer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobhunter"
)

type Config struct {
	StateFile       string               `mapstructure:"state-file"`
	ChecklistDir    string               `mapstructure:"checklist-dir"`
	ReviewThreshold float64              `mapstructure:"review-threshold"`
	Profile         *ai.CandidateProfile `mapstructure:"profile"`
	ReferenceFile   string               `mapstructure:"reference-file"`
	Filter          *filter.Config       `mapstructure:"filter"`
	Classifier      *classifier.Config   `mapstructure:"classifier"`
	Scoring         scorer.Config        `mapstructure:"scoring"`
	AI              *AIConfig            `mapstructure:"ai"`
	Serve           *ServeConfig         `mapstructure:"serve"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string        `mapstructure:"api-key-file"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxChars     int           `mapstructure:"max-chars"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type ServeConfig struct {
	Port string `mapstructure:"port"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobhunter filters, classifies and tracks job postings for a single candidate",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobhunter.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("state-file", "jobhunter.state.json")
	viper.SetDefault("checklist-dir", "checklist")
	viper.SetDefault("review-threshold", 7.0)
}

func initConfig() {
	// The version command runs without a config file.
	if runCmd.CalledAs() == "" && reviewCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
