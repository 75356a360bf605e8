package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"goa.design/clue/log"
)

// defaultMaxResults caps how many results each HTTP provider returns.
const defaultMaxResults = 5

// StatusError reports a non-200 response from a search backend.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d", e.Provider, e.Code)
}

// StatusCode returns the HTTP status of the failed response.
func (e *StatusError) StatusCode() int {
	return e.Code
}

var (
	backoffStart = time.Second      //nolint:gochecknoglobals
	backoffMax   = 30 * time.Second //nolint:gochecknoglobals
)

// doWithBackoff sends the request built by newReq and retries on 429,
// doubling the delay up to backoffMax. newReq is called once per attempt so
// request bodies are fresh. The caller closes the returned body.
func doWithBackoff(ctx context.Context, client *http.Client, provider string, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := backoffStart
	for {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		log.Debug(ctx,
			log.KV{K: "msg", V: "search rate limited"},
			log.KV{K: "provider", V: provider},
			log.KV{K: "delay", V: delay.String()})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, backoffMax)
	}
}

// checkStatus maps a non-200 status to *StatusError.
func checkStatus(resp *http.Response, provider string) error {
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: provider, Code: resp.StatusCode}
	}
	return nil
}
