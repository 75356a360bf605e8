// Package retry re-runs failed answer and model calls with exponential
// backoff when the failure looks transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// A value of 0 or 1 means no retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after each retry.
	BackoffMultiplier float64
	// Jitter randomizes each delay by up to this fraction.
	Jitter float64
}

// DefaultConfig returns three attempts starting at 250ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// statusCoder is implemented by transport errors that carry an HTTP status,
// such as *search.StatusError.
type statusCoder interface {
	StatusCode() int
}

// IsRetryable reports whether err is worth another attempt: network
// timeouts, provider rate limits and 429/502/503/504 responses. Cancellation
// is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, llm.ErrRateLimited) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx ends. Once ctx ends the last error from fn is
// returned unchanged so callers can still classify it.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(calculateBackoff(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	if cfg.MaxAttempts == 1 {
		return lastErr
	}
	return &ExhaustedError{
		Attempts:      cfg.MaxAttempts,
		TotalDuration: time.Since(start),
		LastError:     lastErr,
	}
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		backoff += backoff * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter doesn't need crypto rand
	}
	return time.Duration(backoff)
}

type (
	answerEngine struct {
		next multistep.AnswerEngine
		cfg  Config
	}

	llmProvider struct {
		next multistep.LLMProvider
		cfg  Config
	}
)

// AnswerEngine returns next wrapped so transient failures are retried.
func AnswerEngine(next multistep.AnswerEngine, cfg Config) multistep.AnswerEngine {
	return &answerEngine{next: next, cfg: cfg}
}

// LLMProvider returns next wrapped so transient failures are retried.
func LLMProvider(next multistep.LLMProvider, cfg Config) multistep.LLMProvider {
	return &llmProvider{next: next, cfg: cfg}
}

func (r *answerEngine) Answer(ctx context.Context, subQuestion string) (multistep.Answer, error) {
	var ans multistep.Answer
	err := Do(ctx, r.cfg, func(ctx context.Context) error {
		var err error
		ans, err = r.next.Answer(ctx, subQuestion)
		return err
	})
	return ans, err
}

func (r *llmProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (multistep.LLMResponse, error) {
	var resp multistep.LLMResponse
	err := Do(ctx, r.cfg, func(ctx context.Context) error {
		var err error
		resp, err = r.next.Generate(ctx, systemPrompt, userPrompt)
		return err
	})
	return resp, err
}
