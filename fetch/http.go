// Package fetch reads web pages as plain text for answer engines that need
// more than a search snippet.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/smhanov/multistep"
)

const (
	maxFetchBytes = 32 * 1024 // keeps fetched pages from dominating a prompt
	maxBodyBytes  = 2 << 20
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPFetcher retrieves readable text from a URL.
type HTTPFetcher struct {
	client *http.Client
}

var _ multistep.FetchProvider = (*HTTPFetcher)(nil)

// NewHTTP creates a HTTP fetcher with a modest timeout.
func NewHTTP() *HTTPFetcher {
	return NewHTTPWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewHTTPWithClient creates a fetcher using the supplied HTTP client.
func NewHTTPWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch downloads the URL, reduces HTML to its visible text and truncates the
// result. Plain-text responses are returned as they are.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxBodyBytes)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return "", fmt.Errorf("fetch http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var text string
	if isPlainText(resp.Header.Get("Content-Type")) {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		text = collapseLines(string(raw))
	} else {
		text, err = visibleText(body)
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
	}
	if len(text) > maxFetchBytes {
		cut := maxFetchBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n[TRUNCATED]"
	}
	return text, nil
}

func isPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/plain"
}

// hidden elements contribute no text.
var hidden = map[string]bool{ //nolint:gochecknoglobals
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "svg": true,
}

// block elements start a new line.
var block = map[string]bool{ //nolint:gochecknoglobals
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "table": true, "ul": true, "ol": true,
}

// visibleText walks the token stream and keeps text outside hidden elements.
// Entities are decoded by the tokenizer.
func visibleText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return collapseLines(b.String()), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case hidden[tag]:
				depth++
			case block[tag]:
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := z.TagName(); block[string(name)] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case hidden[tag]:
				if depth > 0 {
					depth--
				}
			case block[tag]:
				b.WriteByte('\n')
			}
		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// collapseLines squeezes runs of spaces and drops blank lines.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
