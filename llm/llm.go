// Package llm holds what the model adapters share. The adapters themselves
// live in subpackages and implement multistep.LLMProvider.
package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimited is matched by adapter errors caused by a provider rate limit
// (HTTP 429). The ratelimit middleware backs off when it sees it.
var ErrRateLimited = errors.New("model rate limited")

// StatusError carries the HTTP status of a failed provider call so retry
// policies can tell transient 5xx failures from permanent ones.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }

// WithStatus wraps err with code, adding ErrRateLimited for 429.
func WithStatus(code int, err error) error {
	if code == 0 {
		return err
	}
	err = &StatusError{Code: code, Err: err}
	if code == http.StatusTooManyRequests {
		err = fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}
