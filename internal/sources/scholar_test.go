package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
	"github.com/communitypulse/pulse/internal/fetch"
)

func testPages(t *testing.T) *fetch.PageFetcher {
	t.Helper()
	return fetch.NewPageFetcher(zerolog.Nop(), fetch.WithPageDelay(time.Millisecond))
}

func scholarProfileHTML(citations, hIndex, i10 string) string {
	return fmt.Sprintf(`<html><body>
<table id="gsc_rsb_st">
<tr><td class="gsc_rsb_std">%s</td><td class="gsc_rsb_std">900</td></tr>
<tr><td class="gsc_rsb_std">%s</td><td class="gsc_rsb_std">15</td></tr>
<tr><td class="gsc_rsb_std">%s</td><td class="gsc_rsb_std">22</td></tr>
</table>
</body></html>`, citations, hIndex, i10)
}

func TestScholarCollectSingleProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, scholarProfileHTML("1,234", "20", "30"))
	}))
	defer srv.Close()

	s := NewScholar(config.ScholarConfig{
		Enabled:  true,
		Profiles: []string{srv.URL + "/citations?user=abc"},
	}, testPages(t), zerolog.Nop())

	rec := s.Collect(context.Background())
	sc, ok := rec.(*community.ScholarRecord)
	require.True(t, ok)

	assert.Equal(t, community.StatusOK, sc.Status)
	assert.Equal(t, community.MethodScrape, sc.Method)
	assert.EqualValues(t, 1234, sc.Citations)
	assert.EqualValues(t, 20, sc.HIndex)
	assert.EqualValues(t, 30, sc.I10Index)
	assert.EqualValues(t, 1, sc.Profiles)
}

func TestScholarCollectMultiProfile(t *testing.T) {
	// Citations sum across profiles, h-index and i10-index take the maximum.
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, scholarProfileHTML("1,000", "20", "30"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, scholarProfileHTML("250", "25", "12"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewScholar(config.ScholarConfig{
		Profiles: []string{srv.URL + "/a", srv.URL + "/b"},
	}, testPages(t), zerolog.Nop())

	rec := s.Collect(context.Background())
	sc := rec.(*community.ScholarRecord)

	assert.Equal(t, community.StatusOK, sc.Status)
	assert.EqualValues(t, 1250, sc.Citations)
	assert.EqualValues(t, 25, sc.HIndex)
	assert.EqualValues(t, 30, sc.I10Index)
	assert.EqualValues(t, 2, sc.Profiles)
}

func TestScholarRegexFallback(t *testing.T) {
	// No recognizable stats table, but the raw markup still carries the
	// labeled cells the fallback patterns match.
	page := `<html><body><table>
<tr><td><a>Citations</a></td><td class="gsc_rsb_std">4,567</td></tr>
<tr><td><a>h-index</a></td><td class="gsc_rsb_std">18</td></tr>
<tr><td><a>i10-index</a></td><td class="gsc_rsb_std">27</td></tr>
</table></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	s := NewScholar(config.ScholarConfig{
		Profiles: []string{srv.URL + "/profile"},
	}, testPages(t), zerolog.Nop())

	rec := s.Collect(context.Background())
	sc := rec.(*community.ScholarRecord)

	assert.Equal(t, community.StatusOK, sc.Status)
	assert.EqualValues(t, 4567, sc.Citations)
	assert.EqualValues(t, 18, sc.HIndex)
	assert.EqualValues(t, 27, sc.I10Index)
}

func TestScholarProfileFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewScholar(config.ScholarConfig{
		Profiles: []string{srv.URL + "/profile"},
	}, testPages(t), zerolog.Nop())

	rec := s.Collect(context.Background())
	sc := rec.(*community.ScholarRecord)

	assert.Equal(t, community.StatusFailed, sc.Status)
	assert.Equal(t, community.MethodNone, sc.Method)
	assert.Zero(t, sc.Citations)
	assert.Zero(t, sc.Profiles)
}

func TestScholarPartialAcrossProfiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, scholarProfileHTML("100", "5", "7"))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewScholar(config.ScholarConfig{
		Profiles: []string{srv.URL + "/good", srv.URL + "/bad"},
	}, testPages(t), zerolog.Nop())

	rec := s.Collect(context.Background())
	sc := rec.(*community.ScholarRecord)

	assert.Equal(t, community.StatusPartial, sc.Status)
	assert.EqualValues(t, 100, sc.Citations)
	assert.EqualValues(t, 1, sc.Profiles)
}
