package aggregate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/sources"
)

// ErrNoSources is returned when a run is attempted with every source
// disabled. This is a configuration problem, not a collection failure.
var ErrNoSources = errors.New("no sources enabled")

// SourceResult summarizes one collector's contribution to a run.
type SourceResult struct {
	Name     string
	Status   community.Status
	Method   community.Method
	Duration time.Duration
}

// RunResult is a completed collection run: the assembled snapshot plus the
// per-source outcomes, in collector order.
type RunResult struct {
	Snapshot *community.Snapshot
	Sources  []SourceResult
}

// Aggregator fans a collection run out across the enabled collectors and
// merges their records into a single snapshot. Collectors run concurrently,
// each under its own timeout; one source failing or timing out never affects
// the others.
type Aggregator struct {
	collectors    []sources.Collector
	sourceTimeout time.Duration
	logger        zerolog.Logger
}

func New(collectors []sources.Collector, sourceTimeout time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		collectors:    collectors,
		sourceTimeout: sourceTimeout,
		logger:        logger,
	}
}

// Run executes every collector and returns the snapshot stamped with the
// collection start time. The error return covers run-level problems only;
// per-source failures are reported through their records.
func (a *Aggregator) Run(ctx context.Context) (*RunResult, error) {
	if len(a.collectors) == 0 {
		return nil, ErrNoSources
	}

	snap := community.NewSnapshot(time.Now())
	results := make([]SourceResult, len(a.collectors))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i, c := range a.collectors {
		wg.Add(1)
		go func(i int, c sources.Collector) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()

			start := time.Now()
			rec := c.Collect(cctx)
			elapsed := time.Since(start)

			a.logger.Info().
				Str("source", c.Name()).
				Str("status", string(rec.State())).
				Dur("duration", elapsed).
				Msg("aggregate: source collected")

			mu.Lock()
			rec.Attach(snap)
			mu.Unlock()
			results[i] = SourceResult{
				Name:     c.Name(),
				Status:   rec.State(),
				Method:   rec.Mode(),
				Duration: elapsed,
			}
		}(i, c)
	}
	wg.Wait()

	return &RunResult{Snapshot: snap, Sources: results}, nil
}
