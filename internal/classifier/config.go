package classifier

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// SchemaVersion is the rule-table schema this build understands. Any other
// version in the config is a fatal startup error.
const SchemaVersion = 1

// Config is the versioned rule table for the classifier. Role order matters:
// ties on the top score resolve to the first-declared role.
type Config struct {
	Version    int               `mapstructure:"version"`
	Roles      []RoleConfig      `mapstructure:"roles" validate:"required,min=1,dive"`
	Overrides  OverrideConfig    `mapstructure:"overrides"`
	Exclusions []ExclusionConfig `mapstructure:"exclusions" validate:"dive"`
}

// RoleConfig maps keywords and phrases to weights for one role.
type RoleConfig struct {
	Name     string             `mapstructure:"name" validate:"required"`
	Keywords map[string]float64 `mapstructure:"keywords" validate:"required,min=1"`
}

// OverrideConfig holds the rules that force a role assignment, bypassing
// weighted scoring entirely.
type OverrideConfig struct {
	// Companies maps an exact company name (case-insensitive) to a role.
	Companies map[string]string `mapstructure:"companies"`
	// Titles forces a role when the posting title matches a pattern.
	Titles []TitleOverride `mapstructure:"titles" validate:"dive"`
}

type TitleOverride struct {
	Pattern string `mapstructure:"pattern" validate:"required"`
	Role    string `mapstructure:"role" validate:"required"`
}

// ExclusionConfig subtracts Penalty from the listed roles' scores when the
// pattern matches the combined title+description text. Scores may go
// negative; they are deliberately not floored.
type ExclusionConfig struct {
	Pattern string   `mapstructure:"pattern" validate:"required"`
	Roles   []string `mapstructure:"roles" validate:"required,min=1"`
	Penalty float64  `mapstructure:"penalty" validate:"min=0"`
}

func (c *Config) validate() error {
	if c.Version != SchemaVersion {
		return fmt.Errorf("unsupported rule table version %d (want %d)", c.Version, SchemaVersion)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid classifier configuration: %w", err)
	}

	known := make(map[string]bool, len(c.Roles))
	for _, role := range c.Roles {
		if known[role.Name] {
			return fmt.Errorf("role %q declared twice", role.Name)
		}
		known[role.Name] = true
	}

	for company, role := range c.Overrides.Companies {
		if !known[role] {
			return fmt.Errorf("company override %q references unknown role %q", company, role)
		}
	}
	for _, override := range c.Overrides.Titles {
		if !known[override.Role] {
			return fmt.Errorf("title override %q references unknown role %q", override.Pattern, override.Role)
		}
		if _, err := regexp.Compile("(?i)" + override.Pattern); err != nil {
			return fmt.Errorf("title override pattern %q: %w", override.Pattern, err)
		}
	}
	for _, exclusion := range c.Exclusions {
		for _, role := range exclusion.Roles {
			if !known[role] {
				return fmt.Errorf("exclusion %q references unknown role %q", exclusion.Pattern, role)
			}
		}
		if _, err := regexp.Compile("(?i)" + exclusion.Pattern); err != nil {
			return fmt.Errorf("exclusion pattern %q: %w", exclusion.Pattern, err)
		}
	}

	return nil
}
