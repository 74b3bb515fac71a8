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

const slackPageLimit = 200

// Slack counts workspace members via users.list. A token is required: Slack
// has no public scrape surface, so a missing credential reads as a failed
// collection rather than a fallback.
type Slack struct {
	cfg    config.SlackConfig
	client *fetch.Client
	logger zerolog.Logger
}

func NewSlack(cfg config.SlackConfig, client *fetch.Client, logger zerolog.Logger) *Slack {
	return &Slack{cfg: cfg, client: client, logger: logger}
}

func (s *Slack) Name() string { return "slack" }

type slackUsersResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Members []struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
		IsBot   bool   `json:"is_bot"`
	} `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (s *Slack) Collect(ctx context.Context) (rec community.Record) {
	out := &community.SlackRecord{Meta: enabledMeta()}
	rec = out

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("source", s.Name()).
				Msg("sources: collector panicked")
			rec = &community.SlackRecord{Meta: enabledMeta()}
		}
	}()

	if s.cfg.Token == "" {
		s.logger.Warn().Str("source", s.Name()).
			Msg("sources: no Slack token configured, cannot collect")
		return rec
	}

	count, err := s.countMembers(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", s.Name()).
			Msg("sources: member count failed")
		return rec
	}

	out.TotalMembers = count
	out.Status = community.StatusOK
	out.Method = community.MethodAPI
	return rec
}

// countMembers pages through users.list with the cursor protocol, counting
// active human members (not deleted, not bots, not Slackbot).
func (s *Slack) countMembers(ctx context.Context) (int64, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + s.cfg.Token,
	}

	var count int64
	cursor := ""
	for {
		listURL := fmt.Sprintf("%s/users.list?limit=%d", s.cfg.APIBaseURL, slackPageLimit)
		if cursor != "" {
			listURL += "&cursor=" + url.QueryEscape(cursor)
		}

		var resp slackUsersResponse
		if err := s.client.GetJSON(ctx, listURL, headers, &resp); err != nil {
			return 0, err
		}
		if !resp.OK {
			return 0, fmt.Errorf("slack API error: %s", resp.Error)
		}

		for _, m := range resp.Members {
			if m.Deleted || m.IsBot || m.ID == "USLACKBOT" {
				continue
			}
			count++
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return count, nil
		}
	}
}
