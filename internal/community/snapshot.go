package community

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Snapshot is the merged result of one collection run. A nil record means the
// source was disabled in configuration and is omitted entirely. A Snapshot is
// immutable once the aggregator has attached all records; it is written to
// history exactly once.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	LastUpdated time.Time        `json:"last_updated"`
	GitHub      *GitHubOrgRecord `json:"github,omitempty"`
	YouTube     *YouTubeRecord   `json:"youtube,omitempty"`
	Scholar     *ScholarRecord   `json:"scholar,omitempty"`
	Slack       *SlackRecord     `json:"slack,omitempty"`
	PyPI        *PyPIRecord      `json:"pypi,omitempty"`
}

// NewSnapshot creates an empty Snapshot stamped with ts (stored as UTC) and a
// fresh run ID.
func NewSnapshot(ts time.Time) *Snapshot {
	return &Snapshot{
		RunID:       NewRunID(),
		LastUpdated: ts.UTC(),
	}
}

// Records returns the attached records in a fixed source order, skipping
// omitted (disabled) sources. The order is stable so the history projection
// produces a deterministic column layout.
func (s *Snapshot) Records() []Record {
	var records []Record
	if s.GitHub != nil {
		records = append(records, s.GitHub)
	}
	if s.YouTube != nil {
		records = append(records, s.YouTube)
	}
	if s.Scholar != nil {
		records = append(records, s.Scholar)
	}
	if s.Slack != nil {
		records = append(records, s.Slack)
	}
	if s.PyPI != nil {
		records = append(records, s.PyPI)
	}
	return records
}

// NewRunID returns a new ULID string identifying one collection run.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// ulid.New only fails if the entropy source does; crypto/rand does not.
		panic(err)
	}
	return id.String()
}
