package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
	"github.com/smhanov/multistep/search"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
}

func TestIsRetryableProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	retryable := map[int]bool{
		http.StatusTooManyRequests:    true,
		http.StatusBadGateway:         true,
		http.StatusServiceUnavailable: true,
		http.StatusGatewayTimeout:     true,
	}
	properties.Property("search status errors retry only on transient codes", prop.ForAll(
		func(code int) bool {
			err := fmt.Errorf("brave: %w", &search.StatusError{Provider: "brave", Code: code})
			return IsRetryable(err) == retryable[code]
		},
		gen.IntRange(400, 599),
	))

	properties.Property("rate limits are retryable however wrapped", prop.ForAll(
		func(msg string) bool {
			return IsRetryable(fmt.Errorf("%s: %w", msg, llm.ErrRateLimited))
		},
		gen.AlphaString(),
	))

	properties.Property("cancellation is never retried", prop.ForAll(
		func(msg string) bool {
			return !IsRetryable(fmt.Errorf("%s: %w", msg, context.Canceled))
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(errors.New("bad request")))
	require.True(t, IsRetryable(context.DeadlineExceeded))
}

func TestIsRetryableModelStatus(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusBadRequest:          false,
		http.StatusInternalServerError: false,
	} {
		err := fmt.Errorf("openai chat completion: %w", llm.WithStatus(code, errors.New("upstream")))
		require.Equal(t, want, IsRetryable(err), "status %d", code)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return llm.ErrRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("invalid api key")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return boom
	})
	require.Same(t, boom, err)
	require.Equal(t, 1, calls)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func(context.Context) error {
		calls++
		return &search.StatusError{Provider: "tavily", Code: http.StatusServiceUnavailable}
	})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 2, exhausted.Attempts)
	require.Equal(t, 2, calls)
	var status *search.StatusError
	require.ErrorAs(t, err, &status)
}

func TestDoSingleAttemptReturnsError(t *testing.T) {
	err := Do(context.Background(), Config{}, func(context.Context) error {
		return llm.ErrRateLimited
	})
	require.Same(t, llm.ErrRateLimited, err)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return llm.ErrRateLimited
	})
	require.ErrorIs(t, err, llm.ErrRateLimited)
	require.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}
	require.Equal(t, 100*time.Millisecond, calculateBackoff(cfg, 1))
	require.Equal(t, 400*time.Millisecond, calculateBackoff(cfg, 3))
	require.Equal(t, time.Second, calculateBackoff(cfg, 10))

	cfg.Jitter = 0.1
	for range 50 {
		d := calculateBackoff(cfg, 1)
		require.GreaterOrEqual(t, d, 90*time.Millisecond)
		require.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestAnswerEngineRetries(t *testing.T) {
	calls := 0
	engine := AnswerEngine(multistep.AnswerEngineFunc(func(context.Context, string) (multistep.Answer, error) {
		calls++
		if calls == 1 {
			return multistep.Answer{}, &search.StatusError{Provider: "brave", Code: http.StatusTooManyRequests}
		}
		return multistep.Answer{Text: "ok"}, nil
	}), fastConfig(3))

	ans, err := engine.Answer(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "ok", ans.Text)
	require.Equal(t, 2, calls)
}

type flakyLLM struct{ calls int }

func (f *flakyLLM) Generate(context.Context, string, string) (multistep.LLMResponse, error) {
	f.calls++
	if f.calls == 1 {
		return multistep.LLMResponse{}, fmt.Errorf("openai: %w", llm.ErrRateLimited)
	}
	return multistep.LLMResponse{Text: "NONE"}, nil
}

func TestLLMProviderRetries(t *testing.T) {
	f := &flakyLLM{}
	resp, err := LLMProvider(f, fastConfig(2)).Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "NONE", resp.Text)
	require.Equal(t, 2, f.calls)
}
