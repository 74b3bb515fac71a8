package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
)

func TestYouTubeCollectAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "statistics", r.URL.Query().Get("part"))
		require.Equal(t, "UCabc123", r.URL.Query().Get("id"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{
				"id": "UCabc123",
				"statistics": map[string]string{
					"viewCount":       "987654",
					"subscriberCount": "12345",
					"videoCount":      "321",
				},
			}},
		})
	}))
	defer srv.Close()

	y := NewYouTube(config.YouTubeConfig{
		Enabled:    true,
		ChannelID:  "UCabc123",
		ChannelURL: "https://www.youtube.com/channel/UCabc123/about",
		APIBaseURL: srv.URL,
		APIKey:     "test-key",
	}, testClient(), zerolog.Nop())

	rec := y.Collect(context.Background())
	yt, ok := rec.(*community.YouTubeRecord)
	require.True(t, ok)

	assert.Equal(t, community.StatusOK, yt.Status)
	assert.Equal(t, community.MethodAPI, yt.Method)
	assert.EqualValues(t, 12345, yt.Subscribers)
	assert.EqualValues(t, 987654, yt.TotalViews)
	assert.EqualValues(t, 321, yt.VideoCount)
	assert.Equal(t, "https://www.youtube.com/channel/UCabc123/about", yt.ChannelURL)
}

func TestYouTubeHandleResolvedOnce(t *testing.T) {
	var resolves atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("forHandle") != "" {
			resolves.Add(1)
			writeJSON(t, w, map[string]any{"items": []map[string]any{{"id": "UCresolved"}}})
			return
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{
				"id": "UCresolved",
				"statistics": map[string]string{
					"viewCount": "1", "subscriberCount": "2", "videoCount": "3",
				},
			}},
		})
	}))
	defer srv.Close()

	y := NewYouTube(config.YouTubeConfig{
		Handle:     "examplechannel",
		APIBaseURL: srv.URL,
		APIKey:     "test-key",
	}, testClient(), zerolog.Nop())

	for i := 0; i < 3; i++ {
		rec := y.Collect(context.Background())
		assert.Equal(t, community.StatusOK, rec.State())
	}
	assert.EqualValues(t, 1, resolves.Load())
}

func TestYouTubeScrapeFallback(t *testing.T) {
	page := `<html><body><script>var ytInitialData = {"subscriberCount":"5400",` +
		`"viewCount":"2100000","videoCount":"87"};</script></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	// No API key configured: the scrape path runs directly.
	y := NewYouTube(config.YouTubeConfig{
		ChannelURL: srv.URL + "/channel/about",
	}, testClient(), zerolog.Nop())

	rec := y.Collect(context.Background())
	yt := rec.(*community.YouTubeRecord)

	assert.Equal(t, community.StatusOK, yt.Status)
	assert.Equal(t, community.MethodScrape, yt.Method)
	assert.EqualValues(t, 5400, yt.Subscribers)
	assert.EqualValues(t, 2100000, yt.TotalViews)
	assert.EqualValues(t, 87, yt.VideoCount)
}

func TestYouTubeScrapePartial(t *testing.T) {
	// Only the human-visible view count is present; the other fields keep
	// their sentinels and the record reads partial.
	page := `<html><body><p>123,456 views</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	y := NewYouTube(config.YouTubeConfig{
		ChannelURL: srv.URL + "/channel/about",
	}, testClient(), zerolog.Nop())

	rec := y.Collect(context.Background())
	yt := rec.(*community.YouTubeRecord)

	assert.Equal(t, community.StatusPartial, yt.Status)
	assert.Equal(t, community.MethodScrape, yt.Method)
	assert.Zero(t, yt.Subscribers)
	assert.EqualValues(t, 123456, yt.TotalViews)
	assert.Zero(t, yt.VideoCount)
}

func TestYouTubeAPIFailureFallsBackToScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/page" {
			w.Write([]byte(`"subscriberCount":"77","viewCount":"88","videoCount":"9"`))
			return
		}
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	y := NewYouTube(config.YouTubeConfig{
		ChannelID:  "UCabc",
		ChannelURL: srv.URL + "/page",
		APIBaseURL: srv.URL + "/api",
		APIKey:     "test-key",
	}, testClient(), zerolog.Nop())

	rec := y.Collect(context.Background())
	yt := rec.(*community.YouTubeRecord)

	assert.Equal(t, community.StatusOK, yt.Status)
	assert.Equal(t, community.MethodScrape, yt.Method)
	assert.EqualValues(t, 77, yt.Subscribers)
}

func TestYouTubeAllPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	y := NewYouTube(config.YouTubeConfig{
		ChannelID:  "UCabc",
		ChannelURL: srv.URL + "/page",
		APIBaseURL: srv.URL + "/api",
		APIKey:     "test-key",
	}, testClient(), zerolog.Nop())

	rec := y.Collect(context.Background())
	yt := rec.(*community.YouTubeRecord)

	assert.Equal(t, community.StatusFailed, yt.Status)
	assert.Equal(t, community.MethodNone, yt.Method)
	assert.Zero(t, yt.Subscribers)
	assert.Zero(t, yt.TotalViews)
}
