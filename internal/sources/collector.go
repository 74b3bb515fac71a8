// Package sources implements one SourceCollector per external platform. A
// collector owns its request construction, credential lookup, and fallback
// ordering, and always returns a record: failures degrade the record's
// status, they never propagate past the collector boundary.
package sources

import (
	"context"

	"github.com/communitypulse/pulse/internal/community"
)

// Collector produces exactly one record for its source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) community.Record
}

// enabledMeta is the starting metadata for a collector run: the source is
// enabled and presumed failed until a retrieval path succeeds.
func enabledMeta() community.Meta {
	return community.Meta{Enabled: true, Status: community.StatusFailed}
}

// scrapeStatus maps the number of independently extracted fields to a record
// status for the scrape path.
func scrapeStatus(extracted, total int) community.Status {
	switch {
	case extracted == 0:
		return community.StatusFailed
	case extracted < total:
		return community.StatusPartial
	default:
		return community.StatusOK
	}
}
