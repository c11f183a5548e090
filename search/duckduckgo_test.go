package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func TestParseDuckDuckGo(t *testing.T) {
	f, err := os.Open("testdata/duckduckgo.html")
	require.NoError(t, err)
	defer f.Close()

	results, err := parseDuckDuckGo(f, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, Result{
		Title:   "Go 1.24 is released! - The Go Programming Language",
		URL:     "https://go.dev/blog/go1.24",
		Snippet: "Today the Go team is happy to release Go 1.24.",
	}, results[0])
	assert.Equal(t, "https://tip.golang.org/doc/go1.24", results[1].URL)
	assert.Equal(t, "https://github.com/golang/go", results[2].URL)
	assert.Empty(t, results[2].Snippet)
}

func TestParseDuckDuckGoLimit(t *testing.T) {
	f, err := os.Open("testdata/duckduckgo.html")
	require.NoError(t, err)
	defer f.Close()

	results, err := parseDuckDuckGo(f, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev/blog/go1.24", results[0].URL)
}

func TestResolveRedirect(t *testing.T) {
	assert.Equal(t, "https://example.com/a?b=c",
		resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc"))
	assert.Equal(t, "https://example.com", resolveRedirect("https://example.com"))
	assert.Empty(t, resolveRedirect("https://duckduckgo.com/y.js?ad_provider=bing"))
	assert.Empty(t, resolveRedirect("/relative"))
	assert.Empty(t, resolveRedirect("javascript:void(0)"))
}

func TestDuckDuckGoSearch(t *testing.T) {
	page := fixture(t, "duckduckgo.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "go 1.24", r.PostForm.Get("q"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(5*time.Second, WithDuckDuckGoURL(srv.URL))
	results, err := ddg.Search(context.Background(), "go 1.24", Options{Count: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDuckDuckGoDefaultCount(t *testing.T) {
	page := fixture(t, "duckduckgo.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(time.Second, WithDuckDuckGoURL(srv.URL), WithDuckDuckGoClient(srv.Client()))
	results, err := ddg.Search(context.Background(), "go", Options{})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDuckDuckGoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(time.Second, WithDuckDuckGoURL(srv.URL))
	_, err := ddg.Search(context.Background(), "go", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}
