package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	start, limit := backoffStart, backoffMax
	backoffStart, backoffMax = time.Millisecond, 4*time.Millisecond
	t.Cleanup(func() { backoffStart, backoffMax = start, limit })
}

const liteHTML = `<table>
<tr><td><a rel="nofollow" href="https://example.com/paul" class='result-link'>Paul &amp; Y Combinator</a></td></tr>
<tr><td class='result-snippet'>Paul founded <b>Y Combinator</b> in 2005.</td></tr>
<tr><td><a rel="nofollow" href="https://example.com/cambridge" class='result-link'>Cambridge</a></td></tr>
<tr><td class='result-snippet'>A city in Massachusetts.</td></tr>
</table>`

func TestDuckDuckGoSearch(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = io.WriteString(w, liteHTML)
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(srv.Client())
	d.Endpoint = srv.URL
	d.limiter = rate.NewLimiter(rate.Inf, 1)

	results, err := d.Search(context.Background(), "who founded yc")
	require.NoError(t, err)
	require.Equal(t, "who founded yc", form.Get("q"))
	require.Len(t, results, 2)
	require.Equal(t, "Paul & Y Combinator", results[0].Title)
	require.Equal(t, "https://example.com/paul", results[0].URL)
	require.Equal(t, "Paul founded Y Combinator in 2005.", results[0].Snippet)
	require.Equal(t, "A city in Massachusetts.", results[1].Snippet)
}

func TestDuckDuckGoRetriesOn429(t *testing.T) {
	fastBackoff(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, liteHTML)
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(srv.Client())
	d.Endpoint = srv.URL
	d.limiter = rate.NewLimiter(rate.Inf, 1)

	results, err := d.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int32(3), calls.Load())
}

func TestDuckDuckGoErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(srv.Client())
	d.Endpoint = srv.URL
	d.limiter = rate.NewLimiter(rate.Inf, 1)

	_, err := d.Search(context.Background(), " ")
	require.EqualError(t, err, "query is empty")

	_, err = d.Search(context.Background(), "q")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode())
	require.EqualError(t, err, "duckduckgo http 403")
}

func TestParseLiteHTMLFallback(t *testing.T) {
	html := `<a href="/settings">Settings page</a>
<a href="https://duckduckgo.com/about">About DuckDuckGo</a>
<a href="https://go.dev/doc">The Go documentation</a>
<a href="https://go.dev/doc">The Go documentation</a>
<a href="https://x.io">abc</a>`
	results := parseLiteHTML(html)
	require.Len(t, results, 1)
	require.Equal(t, "https://go.dev/doc", results[0].URL)
	require.Empty(t, results[0].Snippet)
}

func TestBraveSearch(t *testing.T) {
	var token, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Subscription-Token")
		query = r.URL.Query().Get("q")
		w.Header().Set("X-RateLimit-Remaining", "5, 1000")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{"results": []map[string]string{
				{"title": "Paul Graham", "url": "https://paulgraham.com", "description": "Essays by <strong>Paul</strong>"},
			}},
		})
	}))
	defer srv.Close()

	b := NewBraveWithClient("key-search", srv.Client())
	b.Endpoint = srv.URL
	results, err := b.Search(context.Background(), "paul graham essays")
	require.NoError(t, err)
	require.Equal(t, "key-search", token)
	require.Equal(t, "paul graham essays", query)
	require.Len(t, results, 1)
	require.Equal(t, "Essays by Paul", results[0].Snippet)
}

func TestBraveRequiresKey(t *testing.T) {
	_, err := NewBrave("").Search(context.Background(), "q")
	require.EqualError(t, err, "brave: API key is missing")
}

func TestBraveDelays(t *testing.T) {
	h := http.Header{}
	require.Equal(t, time.Second, braveRetryDelay(h))
	h.Set("X-RateLimit-Reset", "2, 1419704")
	require.Equal(t, 2*time.Second, braveRetryDelay(h))
	h.Set("X-RateLimit-Reset", "0, 100")
	require.Equal(t, time.Second, braveRetryDelay(h))

	require.Equal(t, time.Second, braveNextDelay(http.Header{}))
	h.Set("X-RateLimit-Remaining", "0, 14832")
	require.Equal(t, time.Second, braveNextDelay(h))
	h.Set("X-RateLimit-Remaining", "3, 14832")
	require.Zero(t, braveNextDelay(h))
}

func TestKeyGateWaits(t *testing.T) {
	g := gateFor("test:gate")
	require.NoError(t, g.acquire(context.Background()))
	g.release(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.acquire(ctx), context.DeadlineExceeded)
	require.Same(t, g, gateFor("test:gate"))
}

func TestTavilySearch(t *testing.T) {
	var body tavilyRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{
			{"title": "A", "url": "https://a", "content": "alpha", "score": 0.91},
			{"title": "B", "url": "https://b", "content": "beta", "score": 0.42},
		}})
	}))
	defer srv.Close()

	tv := NewTavilyWithClient("tv-key", "", srv.Client())
	tv.Endpoint = srv.URL
	results, err := tv.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "Bearer tv-key", auth)
	require.Equal(t, tavilyRequest{Query: "q", SearchDepth: "basic", MaxResults: defaultMaxResults}, body)
	require.Len(t, results, 2)
	require.InDelta(t, 0.91, results[0].Score, 1e-9)
}

func TestTavilyRetryHonorsContext(t *testing.T) {
	backoffStart, backoffMax = time.Hour, time.Hour
	t.Cleanup(func() { backoffStart, backoffMax = time.Second, 30*time.Second })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tv := NewTavilyWithClient("tv-key", "advanced", srv.Client())
	tv.Endpoint = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tv.Search(ctx, "q")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
