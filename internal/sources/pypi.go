package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
	"github.com/communitypulse/pulse/internal/fetch"
)

// PyPI fetches recent download counts from the public pypistats API. No
// credential exists for this source.
type PyPI struct {
	cfg    config.PyPIConfig
	client *fetch.Client
	logger zerolog.Logger
}

func NewPyPI(cfg config.PyPIConfig, client *fetch.Client, logger zerolog.Logger) *PyPI {
	return &PyPI{cfg: cfg, client: client, logger: logger}
}

func (p *PyPI) Name() string { return "pypi" }

type pypiRecentResponse struct {
	Data struct {
		LastDay   int64 `json:"last_day"`
		LastWeek  int64 `json:"last_week"`
		LastMonth int64 `json:"last_month"`
	} `json:"data"`
	Package string `json:"package"`
}

func (p *PyPI) Collect(ctx context.Context) (rec community.Record) {
	out := &community.PyPIRecord{Meta: enabledMeta(), Package: p.cfg.Package}
	rec = out

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("source", p.Name()).
				Msg("sources: collector panicked")
			rec = &community.PyPIRecord{Meta: enabledMeta(), Package: p.cfg.Package}
		}
	}()

	statsURL := fmt.Sprintf("%s/packages/%s/recent",
		p.cfg.StatsBaseURL, url.PathEscape(p.cfg.Package))

	var resp pypiRecentResponse
	if err := p.client.GetJSON(ctx, statsURL, nil, &resp); err != nil {
		p.logger.Warn().Err(err).Str("source", p.Name()).Str("package", p.cfg.Package).
			Msg("sources: download stats fetch failed")
		return rec
	}

	out.DownloadsLastDay = resp.Data.LastDay
	out.DownloadsLastWeek = resp.Data.LastWeek
	out.DownloadsLastMonth = resp.Data.LastMonth
	out.Status = community.StatusOK
	out.Method = community.MethodAPI
	return rec
}
