package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goa.design/clue/log"

	"github.com/smhanov/multistep"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via X-Subscription-Token.
type Brave struct {
	APIKey string
	// Endpoint overrides the web search URL.
	Endpoint string
	client   *http.Client
}

var _ multistep.SearchProvider = (*Brave)(nil)

// NewBrave constructs a Brave search provider.
func NewBrave(apiKey string) *Brave {
	return NewBraveWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBraveWithClient constructs a Brave search provider using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewBraveWithClient(apiKey string, client *http.Client) *Brave {
	return &Brave{APIKey: apiKey, Endpoint: braveEndpoint, client: client}
}

// Search executes a Brave query. Calls sharing an API key go through one
// gate paced by Brave's rate-limit headers; a 429 waits for the reset and
// tries again.
func (b *Brave) Search(ctx context.Context, query string) ([]multistep.SearchResult, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	endpoint := b.Endpoint + "?q=" + url.QueryEscape(query)
	gate := gateFor("brave:" + b.APIKey)

	var resp *http.Response
	for {
		if err := gate.acquire(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			gate.release(0)
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.APIKey)

		resp, err = b.client.Do(req)
		if err != nil {
			gate.release(time.Second)
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			gate.release(braveNextDelay(resp.Header))
			break
		}
		wait := braveRetryDelay(resp.Header)
		resp.Body.Close()
		gate.release(wait)
		log.Debug(ctx,
			log.KV{K: "msg", V: "search rate limited"},
			log.KV{K: "provider", V: "brave"},
			log.KV{K: "delay", V: wait.String()})
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "brave"); err != nil {
		return nil, err
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	results := make([]multistep.SearchResult, 0, min(len(payload.Web.Results), defaultMaxResults))
	for _, r := range payload.Web.Results {
		results = append(results, multistep.SearchResult{Title: r.Title, URL: r.URL, Snippet: cleanHTML(r.Description)})
		if len(results) >= defaultMaxResults {
			break
		}
	}
	return results, nil
}

// braveRetryDelay reads X-RateLimit-Reset, a comma-separated list of reset
// times in seconds ("1, 1419704"), and waits for the smallest. Missing or
// unparseable headers wait one second.
func braveRetryDelay(h http.Header) time.Duration {
	smallest := -1
	for _, part := range strings.Split(h.Get("X-RateLimit-Reset"), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		if smallest < 0 || n < smallest {
			smallest = n
		}
	}
	if smallest <= 0 {
		return time.Second
	}
	return time.Duration(smallest) * time.Second
}

// braveNextDelay holds the gate for a second when the per-second bucket in
// X-RateLimit-Remaining ("0, 14832") is empty or unknown.
func braveNextDelay(h http.Header) time.Duration {
	raw, _, _ := strings.Cut(h.Get("X-RateLimit-Remaining"), ",")
	perSecond, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || perSecond <= 0 {
		return time.Second
	}
	return 0
}
