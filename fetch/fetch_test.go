package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.css", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mirror-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{margin:0}"))
	})
	mux.HandleFunc("/missing.js", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>not found</html>", http.StatusNotFound)
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/big.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok.css", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Fetch(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{UserAgent: "mirror-test", MaxBytes: 1024})
	defer c.Close()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		a := c.Fetch(ctx, srv.URL+"/ok.css", time.Second)
		require.True(t, a.OK(), "err: %v", a.Err)
		assert.Equal(t, 200, a.Status)
		assert.Equal(t, "body{margin:0}", string(a.Body))
	})

	t.Run("redirect followed", func(t *testing.T) {
		a := c.Fetch(ctx, srv.URL+"/redirect", time.Second)
		require.True(t, a.OK())
		assert.Equal(t, "body{margin:0}", string(a.Body))
	})

	t.Run("404 is a failed attempt", func(t *testing.T) {
		a := c.Fetch(ctx, srv.URL+"/missing.js", time.Second)
		assert.False(t, a.OK())
		assert.Equal(t, 404, a.Status)
		assert.True(t, errors.Is(a.Err, ErrStatus))
		assert.Nil(t, a.Body)
	})

	t.Run("timeout is a failed attempt", func(t *testing.T) {
		start := time.Now()
		a := c.Fetch(ctx, srv.URL+"/slow.png", 100*time.Millisecond)
		assert.False(t, a.OK())
		assert.True(t, errors.Is(a.Err, ErrTimeout), "err: %v", a.Err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("oversized body", func(t *testing.T) {
		a := c.Fetch(ctx, srv.URL+"/big.bin", time.Second)
		assert.False(t, a.OK())
		assert.True(t, errors.Is(a.Err, ErrTooLarge))
	})

	t.Run("connection refused", func(t *testing.T) {
		a := c.Fetch(ctx, "http://127.0.0.1:1/x.js", time.Second)
		assert.False(t, a.OK())
		assert.Equal(t, 0, a.Status)
		assert.Error(t, a.Err)
	})

	t.Run("bad url", func(t *testing.T) {
		a := c.Fetch(ctx, "http://[::1", time.Second)
		assert.False(t, a.OK())
	})
}

type stubFetcher struct {
	status int
	body   string
}

func (s stubFetcher) Fetch(_ context.Context, rawURL string, _ time.Duration) Attempt {
	return Attempt{URL: rawURL, Status: s.status, Body: []byte(s.body)}
}

func TestRobotsAllowed(t *testing.T) {
	robots := "User-agent: *\nDisallow: /private\n\nUser-agent: MirrorBot\nDisallow: /\n"
	ctx := context.Background()

	tests := []struct {
		name    string
		fetcher Fetcher
		url     string
		ua      string
		want    bool
	}{
		{"allowed path", stubFetcher{200, robots}, "https://x.test/blog/post", "SomeBot", true},
		{"disallowed path", stubFetcher{200, robots}, "https://x.test/private/page", "SomeBot", false},
		{"agent group", stubFetcher{200, robots}, "https://x.test/blog/post", "MirrorBot", false},
		{"missing robots", stubFetcher{404, ""}, "https://x.test/private", "SomeBot", true},
		{"server error", stubFetcher{503, ""}, "https://x.test/", "SomeBot", false},
		{"unreachable", stubFetcher{0, ""}, "https://x.test/private", "SomeBot", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := RobotsAllowed(ctx, tt.fetcher, tt.url, tt.ua)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := RobotsAllowed(ctx, stubFetcher{200, ""}, "not a url", "x")
	assert.Error(t, err)
}
