package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
	"github.com/communitypulse/pulse/internal/extract"
	"github.com/communitypulse/pulse/internal/fetch"
)

// YouTube collects channel statistics. With an API key the Data API is the
// preferred path; otherwise the public channel page is scraped with the
// pattern strategies below, each field extracted independently.
type YouTube struct {
	cfg    config.YouTubeConfig
	client *fetch.Client
	logger zerolog.Logger

	resolve  singleflight.Group
	mu       sync.Mutex
	cachedID string
}

func NewYouTube(cfg config.YouTubeConfig, client *fetch.Client, logger zerolog.Logger) *YouTube {
	return &YouTube{cfg: cfg, client: client, logger: logger}
}

func (y *YouTube) Name() string { return "youtube" }

// Scrape strategies, ordered by preference: the embedded JSON blobs in the
// channel page are the most stable, human-visible text the loosest. The text
// variants carry abbreviated counts ("1.2K subscribers") handled by the
// suffix table in the extract package.
var (
	ytSubscriberStrategies = []extract.Strategy{
		extract.Pattern("embedded-json", regexp.MustCompile(`"subscriberCount"\s*:\s*"(\d+)"`)),
		extract.Pattern("count-text", regexp.MustCompile(`"subscriberCountText"\s*:\s*\{"simpleText"\s*:\s*"([\d.,\sKMB]+)\s+subscribers?"`)),
		extract.Pattern("page-text", regexp.MustCompile(`([\d.,]+[KMB]?)\s+subscribers`)),
	}
	ytViewStrategies = []extract.Strategy{
		extract.Pattern("embedded-json", regexp.MustCompile(`"viewCount"\s*:\s*"(\d+)"`)),
		extract.Pattern("count-text", regexp.MustCompile(`"viewCountText"\s*:\s*\{"simpleText"\s*:\s*"([\d.,\s]+)\s+views"`)),
		extract.Pattern("page-text", regexp.MustCompile(`([\d.,]+[KMB]?)\s+views`)),
	}
	ytVideoStrategies = []extract.Strategy{
		extract.Pattern("embedded-json", regexp.MustCompile(`"videoCount"\s*:\s*"(\d+)"`)),
		extract.Pattern("page-text", regexp.MustCompile(`([\d.,]+[KMB]?)\s+videos`)),
	}
)

type ytChannelsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount       string `json:"viewCount"`
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (y *YouTube) Collect(ctx context.Context) (rec community.Record) {
	out := &community.YouTubeRecord{Meta: enabledMeta(), ChannelURL: y.cfg.PublicURL()}
	rec = out

	defer func() {
		if r := recover(); r != nil {
			y.logger.Error().Interface("panic", r).Str("source", y.Name()).
				Msg("sources: collector panicked")
			rec = &community.YouTubeRecord{Meta: enabledMeta(), ChannelURL: y.cfg.PublicURL()}
		}
	}()

	if y.cfg.APIKey != "" {
		err := y.collectAPI(ctx, out)
		if err == nil {
			out.Status = community.StatusOK
			out.Method = community.MethodAPI
			return rec
		}
		y.logger.Warn().Err(err).Str("source", y.Name()).
			Msg("sources: API path failed, falling back to scrape")
	}

	y.collectScrape(ctx, out)
	return rec
}

// collectAPI fetches channel statistics from the Data API.
func (y *YouTube) collectAPI(ctx context.Context, out *community.YouTubeRecord) error {
	id, err := y.channelID(ctx)
	if err != nil {
		return err
	}

	statsURL := fmt.Sprintf("%s/channels?part=statistics&id=%s&key=%s",
		y.cfg.APIBaseURL, url.QueryEscape(id), url.QueryEscape(y.cfg.APIKey))

	var resp ytChannelsResponse
	if err := y.client.GetJSON(ctx, statsURL, nil, &resp); err != nil {
		return err
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("channel %q not found", id)
	}

	// Parse into locals first so a malformed payload leaves the record at
	// sentinel defaults for the scrape fallback.
	stats := resp.Items[0].Statistics
	subs, err := strconv.ParseInt(stats.SubscriberCount, 10, 64)
	if err != nil {
		return fmt.Errorf("subscriberCount %q: %w", stats.SubscriberCount, err)
	}
	views, err := strconv.ParseInt(stats.ViewCount, 10, 64)
	if err != nil {
		return fmt.Errorf("viewCount %q: %w", stats.ViewCount, err)
	}
	videos, err := strconv.ParseInt(stats.VideoCount, 10, 64)
	if err != nil {
		return fmt.Errorf("videoCount %q: %w", stats.VideoCount, err)
	}

	out.Subscribers = subs
	out.TotalViews = views
	out.VideoCount = videos
	return nil
}

// channelID resolves the configured handle to a channel ID through the API,
// once per run. Concurrent lookups coalesce through the singleflight group
// and the result is cached for the rest of the run.
func (y *YouTube) channelID(ctx context.Context) (string, error) {
	if y.cfg.ChannelID != "" {
		return y.cfg.ChannelID, nil
	}
	if y.cfg.Handle == "" {
		return "", fmt.Errorf("no channel_id or handle configured")
	}

	y.mu.Lock()
	if y.cachedID != "" {
		id := y.cachedID
		y.mu.Unlock()
		return id, nil
	}
	y.mu.Unlock()

	v, err, _ := y.resolve.Do("channel-id", func() (any, error) {
		resolveURL := fmt.Sprintf("%s/channels?part=id&forHandle=%s&key=%s",
			y.cfg.APIBaseURL, url.QueryEscape(y.cfg.Handle), url.QueryEscape(y.cfg.APIKey))

		var resp ytChannelsResponse
		if err := y.client.GetJSON(ctx, resolveURL, nil, &resp); err != nil {
			return nil, fmt.Errorf("resolving handle %q: %w", y.cfg.Handle, err)
		}
		if len(resp.Items) == 0 || resp.Items[0].ID == "" {
			return nil, fmt.Errorf("handle %q did not resolve to a channel", y.cfg.Handle)
		}
		return resp.Items[0].ID, nil
	})
	if err != nil {
		return "", err
	}

	id := v.(string)
	y.mu.Lock()
	y.cachedID = id
	y.mu.Unlock()
	return id, nil
}

// collectScrape fetches the public channel page and extracts each field
// independently; one field's miss does not block another's.
func (y *YouTube) collectScrape(ctx context.Context, out *community.YouTubeRecord) {
	pageURL := y.cfg.PublicURL()
	body, err := y.client.GetHTML(ctx, pageURL)
	if err != nil {
		y.logger.Warn().Err(err).Str("source", y.Name()).Str("url", pageURL).
			Msg("sources: channel page fetch failed")
		return
	}
	page := string(body)

	extracted := 0
	if n, res := extract.Number(page, ytSubscriberStrategies); res.OK {
		out.Subscribers = n
		extracted++
	}
	if n, res := extract.Number(page, ytViewStrategies); res.OK {
		out.TotalViews = n
		extracted++
	}
	if n, res := extract.Number(page, ytVideoStrategies); res.OK {
		out.VideoCount = n
		extracted++
	}

	out.Status = scrapeStatus(extracted, 3)
	if extracted > 0 {
		out.Method = community.MethodScrape
	}
}
