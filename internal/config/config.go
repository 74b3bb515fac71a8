// Package config loads and validates the collector configuration. Settings
// come from a YAML file with credentials overridable via environment
// variables, so CI runs can keep tokens out of the checked-in config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full collector configuration. Callers hand a validated Config
// to the collectors; nothing downstream re-reads files or the environment.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Logging    LoggingConfig    `yaml:"logging"`
	Collection CollectionConfig `yaml:"collection"`
	Sources    SourcesConfig    `yaml:"sources"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CollectionConfig bounds a collection run. Timeouts are whole seconds to
// keep the YAML surface simple.
type CollectionConfig struct {
	RunTimeoutSeconds    int     `yaml:"run_timeout_seconds" validate:"min=0"`
	SourceTimeoutSeconds int     `yaml:"source_timeout_seconds" validate:"min=0"`
	RatePerSecond        float64 `yaml:"rate_per_second" validate:"min=0"`
}

// RunTimeout is the global wall-clock budget for one run.
func (c CollectionConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// SourceTimeout bounds each individual source collection.
func (c CollectionConfig) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

type SourcesConfig struct {
	GitHub  GitHubConfig  `yaml:"github"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Scholar ScholarConfig `yaml:"scholar"`
	Slack   SlackConfig   `yaml:"slack"`
	PyPI    PyPIConfig    `yaml:"pypi"`
}

// GitHubConfig targets either a whole organization or an explicit repository
// list ("owner/name" entries). Token is optional; without it the public API
// is used at its lower rate limit.
type GitHubConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Organization string   `yaml:"organization"`
	Repositories []string `yaml:"repositories"`
	APIBaseURL   string   `yaml:"api_base_url" validate:"omitempty,url"`
	Token        string   `yaml:"token"`
}

// YouTubeConfig identifies a channel by ID or @handle. With an API key the
// Data API is used; without one the public channel page is scraped.
type YouTubeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ChannelID  string `yaml:"channel_id"`
	Handle     string `yaml:"handle"`
	ChannelURL string `yaml:"channel_url" validate:"omitempty,url"`
	APIBaseURL string `yaml:"api_base_url" validate:"omitempty,url"`
	APIKey     string `yaml:"api_key"`
}

// PublicURL returns the channel page used for the scrape fallback, deriving
// it from the handle or channel ID when not set explicitly.
func (c YouTubeConfig) PublicURL() string {
	if c.ChannelURL != "" {
		return c.ChannelURL
	}
	if c.Handle != "" {
		return "https://www.youtube.com/@" + strings.TrimPrefix(c.Handle, "@") + "/about"
	}
	if c.ChannelID != "" {
		return "https://www.youtube.com/channel/" + c.ChannelID + "/about"
	}
	return ""
}

// ScholarConfig lists author profile URLs. Scholar has no API; scraping is
// the only strategy.
type ScholarConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Profiles []string `yaml:"profiles" validate:"dive,url"`
}

type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIBaseURL string `yaml:"api_base_url" validate:"omitempty,url"`
	Token      string `yaml:"token"`
}

type PyPIConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Package      string `yaml:"package"`
	StatsBaseURL string `yaml:"stats_base_url" validate:"omitempty,url"`
}

// Default returns a Config with all defaults applied and every source
// disabled.
func Default() Config {
	return Config{
		DataDir: "metrics",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Collection: CollectionConfig{
			RunTimeoutSeconds:    120,
			SourceTimeoutSeconds: 30,
			RatePerSecond:        2,
		},
		Sources: SourcesConfig{
			GitHub:  GitHubConfig{APIBaseURL: "https://api.github.com"},
			YouTube: YouTubeConfig{APIBaseURL: "https://www.googleapis.com/youtube/v3"},
			Slack:   SlackConfig{APIBaseURL: "https://slack.com/api"},
			PyPI:    PyPIConfig{StatsBaseURL: "https://pypistats.org/api"},
		},
	}
}

// Load reads the YAML config at path, applies defaults and environment
// overrides, and validates the result. A missing file is not an error: the
// defaults plus environment variables are used, matching the behaviour of the
// scheduler environments this runs in.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to env-only configuration.
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overlays credentials and the data directory from the environment.
func applyEnv(cfg *Config) {
	cfg.Sources.GitHub.Token = getEnv("GITHUB_TOKEN", cfg.Sources.GitHub.Token)
	cfg.Sources.YouTube.APIKey = getEnv("YOUTUBE_API_KEY", cfg.Sources.YouTube.APIKey)
	cfg.Sources.Slack.Token = getEnv("SLACK_TOKEN", cfg.Sources.Slack.Token)
	cfg.DataDir = getEnv("PULSE_DATA_DIR", cfg.DataDir)
}

var validate = validator.New()

// Validate checks the Config and returns an error describing all problems
// found, or nil if the config is valid.
func (c Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, "data_dir: required")
	}

	if c.Sources.GitHub.Enabled &&
		strings.TrimSpace(c.Sources.GitHub.Organization) == "" &&
		len(c.Sources.GitHub.Repositories) == 0 {
		errs = append(errs, "sources.github: organization or repositories required when enabled")
	}
	if c.Sources.YouTube.Enabled && c.Sources.YouTube.PublicURL() == "" {
		errs = append(errs, "sources.youtube: channel_id, handle, or channel_url required when enabled")
	}
	if c.Sources.Scholar.Enabled && len(c.Sources.Scholar.Profiles) == 0 {
		errs = append(errs, "sources.scholar: at least one profile URL required when enabled")
	}
	if c.Sources.PyPI.Enabled && strings.TrimSpace(c.Sources.PyPI.Package) == "" {
		errs = append(errs, "sources.pypi: package required when enabled")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// EnabledSources lists the names of enabled sources in the fixed source
// order. An empty result is a configuration error at the collect entry point.
func (c Config) EnabledSources() []string {
	var names []string
	if c.Sources.GitHub.Enabled {
		names = append(names, "github")
	}
	if c.Sources.YouTube.Enabled {
		names = append(names, "youtube")
	}
	if c.Sources.Scholar.Enabled {
		names = append(names, "scholar")
	}
	if c.Sources.Slack.Enabled {
		names = append(names, "slack")
	}
	if c.Sources.PyPI.Enabled {
		names = append(names, "pypi")
	}
	return names
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
