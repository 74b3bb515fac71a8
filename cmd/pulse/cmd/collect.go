package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/communitypulse/pulse/internal/aggregate"
	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
	"github.com/communitypulse/pulse/internal/fetch"
	"github.com/communitypulse/pulse/internal/history"
	"github.com/communitypulse/pulse/internal/metrics"
	"github.com/communitypulse/pulse/internal/sources"
)

var (
	dryRun     bool
	dataDir    string
	runTimeout time.Duration
	onlySource string

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Collect metrics from all enabled sources",
		Long: `Collect runs every enabled source concurrently, merges the results into
a snapshot, and appends it to the history (CSV series + latest.json).

Per-source failures are recorded in the snapshot and do not fail the
command; only run-level problems (bad config, unwritable history) do.`,
		RunE: runCollect,
	}
)

func init() {
	collectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the snapshot as JSON without writing history")
	collectCmd.Flags().StringVar(&dataDir, "data-dir", "", "override the configured data directory")
	collectCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "override the run timeout (e.g. 90s)")
	collectCmd.Flags().StringVar(&onlySource, "source", "", "collect only the named source")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	budget := cfg.Collection.RunTimeout()
	if runTimeout > 0 {
		budget = runTimeout
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	collectors := buildCollectors(cfg, logger)
	if onlySource != "" {
		collectors = filterCollectors(collectors, onlySource)
		if len(collectors) == 0 {
			return fmt.Errorf("source %q is unknown or not enabled", onlySource)
		}
	}
	agg := aggregate.New(collectors, cfg.Collection.SourceTimeout(), logger)

	started := time.Now()
	res, err := agg.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	printResults(res, elapsed)

	if dryRun {
		data, err := json.MarshalIndent(res.Snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	store := history.NewStore(cfg.DataDir, logger)
	if err := store.Append(res.Snapshot); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	if err := store.WriteLatest(res.Snapshot); err != nil {
		return fmt.Errorf("writing latest snapshot: %w", err)
	}

	// Telemetry is best-effort: a failed textfile write must not fail a run
	// whose history is already safely on disk.
	rec := metrics.NewRecorder()
	for _, sr := range res.Sources {
		rec.ObserveSource(sr.Name, sr.Status, sr.Method, sr.Duration)
	}
	rec.ObserveRun(started, elapsed)
	if err := rec.WriteTextfile(filepath.Join(cfg.DataDir, metrics.TextfileName)); err != nil {
		logger.Warn().Err(err).Msg("collect: metrics textfile write failed")
	}

	logger.Info().
		Str("run_id", res.Snapshot.RunID).
		Dur("duration", elapsed).
		Str("data_dir", cfg.DataDir).
		Msg("collect: run complete")
	return nil
}

// buildCollectors instantiates one collector per enabled source, in the fixed
// source order.
func buildCollectors(cfg config.Config, logger zerolog.Logger) []sources.Collector {
	client := fetch.NewClient(fetch.WithRateLimit(cfg.Collection.RatePerSecond))
	pages := fetch.NewPageFetcher(logger)

	var cs []sources.Collector
	if cfg.Sources.GitHub.Enabled {
		cs = append(cs, sources.NewGitHub(cfg.Sources.GitHub, client, logger))
	}
	if cfg.Sources.YouTube.Enabled {
		cs = append(cs, sources.NewYouTube(cfg.Sources.YouTube, client, logger))
	}
	if cfg.Sources.Scholar.Enabled {
		cs = append(cs, sources.NewScholar(cfg.Sources.Scholar, pages, logger))
	}
	if cfg.Sources.Slack.Enabled {
		cs = append(cs, sources.NewSlack(cfg.Sources.Slack, client, logger))
	}
	if cfg.Sources.PyPI.Enabled {
		cs = append(cs, sources.NewPyPI(cfg.Sources.PyPI, client, logger))
	}
	return cs
}

func filterCollectors(cs []sources.Collector, name string) []sources.Collector {
	var out []sources.Collector
	for _, c := range cs {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

// printResults prints a table of per-source outcomes and a totals row.
func printResults(res *aggregate.RunResult, elapsed time.Duration) {
	fmt.Printf("%-10s %-9s %-7s %s\n", "SOURCE", "STATUS", "METHOD", "DURATION")

	okCount := 0
	for _, r := range res.Sources {
		method := string(r.Method)
		if method == "" {
			method = "-"
		}
		fmt.Printf("%-10s %-9s %-7s %s\n",
			r.Name, r.Status, method, r.Duration.Round(time.Millisecond),
		)
		if r.Status != community.StatusFailed {
			okCount++
		}
	}

	fmt.Printf("---\n")
	fmt.Printf("%-10s %d/%d sources in %s\n", "TOTAL", okCount, len(res.Sources), elapsed.Round(time.Millisecond))
}
