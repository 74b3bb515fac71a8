package fetch

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
)

func fetcher() *PageFetcher {
	return NewPageFetcher(zerolog.Nop(), WithPageDelay(time.Millisecond))
}

func TestPageFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, "<html>page body</html>")
	}))
	defer srv.Close()

	body, err := fetcher().Fetch(context.Background(), srv.URL+"/profile")
	require.NoError(t, err)
	assert.Equal(t, "<html>page body</html>", string(body))
}

func TestPageFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fetcher().Fetch(context.Background(), srv.URL+"/profile")
	require.Error(t, err)
}

func TestPageFetchInvalidURL(t *testing.T) {
	_, err := fetcher().Fetch(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestPageFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher().Fetch(ctx, "http://127.0.0.1:1/never")
	assert.ErrorIs(t, err, context.Canceled)
}
