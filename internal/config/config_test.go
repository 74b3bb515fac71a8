package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a config.yaml inside a temp dir and returns
// its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "metrics", cfg.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 120, cfg.Collection.RunTimeoutSeconds)
	assert.Equal(t, "https://api.github.com", cfg.Sources.GitHub.APIBaseURL)
	assert.Empty(t, cfg.EnabledSources())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/pulse
logging:
  level: debug
  format: console
collection:
  run_timeout_seconds: 60
  source_timeout_seconds: 15
sources:
  github:
    enabled: true
    organization: example-org
  youtube:
    enabled: true
    handle: "@example"
  scholar:
    enabled: true
    profiles:
      - https://scholar.google.com/citations?user=abc123
  slack:
    enabled: true
    token: xoxb-test
  pypi:
    enabled: true
    package: example-pkg
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pulse", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 60, cfg.Collection.RunTimeoutSeconds)
	assert.Equal(t, []string{"github", "youtube", "scholar", "slack", "pypi"}, cfg.EnabledSources())
	// Defaults survive a partial sources block.
	assert.Equal(t, "https://slack.com/api", cfg.Sources.Slack.APIBaseURL)
	assert.Equal(t,
		"https://www.youtube.com/@example/about",
		cfg.Sources.YouTube.PublicURL(),
	)
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	path := writeConfig(t, `
sources:
  github:
    enabled: true
    organization: example-org
    token: from-file
`)

	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("SLACK_TOKEN", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Sources.GitHub.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // empty means no error expected; substring match
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "  " },
			wantErr: "data_dir: required",
		},
		{
			name: "github enabled without target",
			mutate: func(c *Config) {
				c.Sources.GitHub.Enabled = true
				c.Sources.GitHub.Organization = ""
			},
			wantErr: "sources.github: organization or repositories required",
		},
		{
			name: "github repositories alone suffice",
			mutate: func(c *Config) {
				c.Sources.GitHub.Enabled = true
				c.Sources.GitHub.Repositories = []string{"example/repo"}
			},
		},
		{
			name: "youtube enabled without channel",
			mutate: func(c *Config) {
				c.Sources.YouTube.Enabled = true
			},
			wantErr: "sources.youtube: channel_id, handle, or channel_url required",
		},
		{
			name: "scholar enabled without profiles",
			mutate: func(c *Config) {
				c.Sources.Scholar.Enabled = true
			},
			wantErr: "sources.scholar: at least one profile URL required",
		},
		{
			name: "scholar profile not a URL",
			mutate: func(c *Config) {
				c.Sources.Scholar.Enabled = true
				c.Sources.Scholar.Profiles = []string{"not a url"}
			},
			wantErr: "url",
		},
		{
			name: "pypi enabled without package",
			mutate: func(c *Config) {
				c.Sources.PyPI.Enabled = true
			},
			wantErr: "sources.pypi: package required",
		},
		{
			name: "bad api base url",
			mutate: func(c *Config) {
				c.Sources.GitHub.Enabled = true
				c.Sources.GitHub.Organization = "example-org"
				c.Sources.GitHub.APIBaseURL = "not-a-url"
			},
			wantErr: "GitHub.APIBaseURL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
