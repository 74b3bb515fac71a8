package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/communitypulse/pulse/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources and whether they are enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s %-9s %s\n", "SOURCE", "ENABLED", "TARGET")
		fmt.Fprintf(out, "%-10s %-9v %s\n", "github", cfg.Sources.GitHub.Enabled, githubTarget(cfg))
		fmt.Fprintf(out, "%-10s %-9v %s\n", "youtube", cfg.Sources.YouTube.Enabled, cfg.Sources.YouTube.PublicURL())
		fmt.Fprintf(out, "%-10s %-9v %d profile(s)\n", "scholar", cfg.Sources.Scholar.Enabled, len(cfg.Sources.Scholar.Profiles))
		fmt.Fprintf(out, "%-10s %-9v %s\n", "slack", cfg.Sources.Slack.Enabled, slackTarget(cfg))
		fmt.Fprintf(out, "%-10s %-9v %s\n", "pypi", cfg.Sources.PyPI.Enabled, cfg.Sources.PyPI.Package)
		return nil
	},
}

func githubTarget(cfg config.Config) string {
	if cfg.Sources.GitHub.Organization != "" {
		return "org:" + cfg.Sources.GitHub.Organization
	}
	return fmt.Sprintf("%d repo(s)", len(cfg.Sources.GitHub.Repositories))
}

func slackTarget(cfg config.Config) string {
	if cfg.Sources.Slack.Token != "" {
		return "token configured"
	}
	return "no token"
}
