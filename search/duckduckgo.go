package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/smhanov/multistep"
)

const (
	ddgEndpoint  = "https://lite.duckduckgo.com/lite/"
	ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ddgLimiter allows one query per second across all DuckDuckGo instances.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1) //nolint:gochecknoglobals

// DuckDuckGo implements a searcher using DuckDuckGo's HTML lite interface.
type DuckDuckGo struct {
	// Endpoint overrides the lite search URL.
	Endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

var _ multistep.SearchProvider = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{Endpoint: ddgEndpoint, client: client, limiter: ddgLimiter}
}

// Search scrapes the DuckDuckGo lite HTML page for results.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]multistep.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)
	resp, err := doWithBackoff(ctx, d.client, "duckduckgo", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", ddgUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "duckduckgo"); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseLiteHTML(string(body)), nil
}

var (
	// result links appear with class before or after href
	reResultLinkClassFirst = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`) //nolint:gochecknoglobals
	reResultLinkHrefFirst  = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`) //nolint:gochecknoglobals
	reResultSnippet        = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`) //nolint:gochecknoglobals
	reAnyLink              = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)                                      //nolint:gochecknoglobals
	reTag                  = regexp.MustCompile(`<[^>]+>`)                                                                               //nolint:gochecknoglobals
)

// parseLiteHTML extracts results from the lite page, pairing the n-th result
// link with the n-th snippet cell. Pages without result-link markup fall back
// to any external link.
func parseLiteHTML(html string) []multistep.SearchResult {
	links := reResultLinkClassFirst.FindAllStringSubmatch(html, -1)
	if len(links) == 0 {
		links = reResultLinkHrefFirst.FindAllStringSubmatch(html, -1)
	}
	snippets := reResultSnippet.FindAllStringSubmatch(html, -1)

	var results []multistep.SearchResult
	for i, m := range links {
		u := strings.TrimSpace(m[1])
		title := cleanHTML(m[2])
		if u == "" || title == "" {
			continue
		}
		var snippet string
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, multistep.SearchResult{Title: title, URL: u, Snippet: snippet})
		if len(results) >= defaultMaxResults {
			break
		}
	}
	if len(results) == 0 {
		return parseExternalLinks(html)
	}
	return results
}

// parseExternalLinks keeps distinct off-site links with a meaningful title.
func parseExternalLinks(html string) []multistep.SearchResult {
	var results []multistep.SearchResult
	seen := make(map[string]bool)
	for _, m := range reAnyLink.FindAllStringSubmatch(html, -1) {
		u := strings.TrimSpace(m[1])
		title := cleanHTML(m[2])
		if isInternalLink(u) || len(title) < 5 || seen[u] {
			continue
		}
		seen[u] = true
		results = append(results, multistep.SearchResult{Title: title, URL: u})
		if len(results) >= defaultMaxResults {
			break
		}
	}
	return results
}

func isInternalLink(u string) bool {
	return strings.Contains(u, "duckduckgo.com") ||
		strings.HasPrefix(u, "/") ||
		strings.HasPrefix(u, "#") ||
		strings.HasPrefix(u, "javascript:")
}

var entityReplacer = strings.NewReplacer( //nolint:gochecknoglobals
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
	"&#x27;", "'",
	"&nbsp;", " ",
)

// cleanHTML removes tags and decodes common entities.
func cleanHTML(s string) string {
	return strings.TrimSpace(entityReplacer.Replace(reTag.ReplaceAllString(s, "")))
}
