package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
)

func TestPyPICollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/packages/examplepkg/recent", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"data": map[string]int64{
				"last_day":   120,
				"last_week":  900,
				"last_month": 4100,
			},
			"package": "examplepkg",
		})
	}))
	defer srv.Close()

	p := NewPyPI(config.PyPIConfig{
		Enabled:      true,
		Package:      "examplepkg",
		StatsBaseURL: srv.URL,
	}, testClient(), zerolog.Nop())

	rec := p.Collect(context.Background())
	py, ok := rec.(*community.PyPIRecord)
	require.True(t, ok)

	assert.Equal(t, community.StatusOK, py.Status)
	assert.Equal(t, community.MethodAPI, py.Method)
	assert.Equal(t, "examplepkg", py.Package)
	assert.EqualValues(t, 120, py.DownloadsLastDay)
	assert.EqualValues(t, 900, py.DownloadsLastWeek)
	assert.EqualValues(t, 4100, py.DownloadsLastMonth)
}

func TestPyPICollectUnknownPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewPyPI(config.PyPIConfig{
		Package:      "missing",
		StatsBaseURL: srv.URL,
	}, testClient(), zerolog.Nop())

	rec := p.Collect(context.Background())
	py := rec.(*community.PyPIRecord)
	assert.Equal(t, community.StatusFailed, py.Status)
	assert.Equal(t, community.MethodNone, py.Method)
	assert.Zero(t, py.DownloadsLastMonth)
}
