// Package ratelimit throttles multistep.LLMProvider calls with an adaptive
// token bucket.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
)

type (
	// AdaptiveRateLimiter applies an AIMD token bucket in front of a provider.
	// Each call is charged an estimate of its prompt tokens; a rate-limited
	// response halves the budget and every success restores a little of it.
	//
	// One limiter is meant to sit in front of each upstream account so that
	// decomposer, answer and synthesis calls share the same budget.
	AdaptiveRateLimiter struct {
		mu sync.Mutex

		limiter *rate.Limiter

		currentTPM   float64
		minTPM       float64
		maxTPM       float64
		recoveryRate float64
	}

	limitedProvider struct {
		next    multistep.LLMProvider
		limiter *AdaptiveRateLimiter
	}
)

// New constructs a limiter with an initial tokens-per-minute budget that may
// recover up to maxTPM. A non-positive initialTPM defaults to 60000; maxTPM is
// clamped to at least initialTPM.
func New(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       max(initialTPM*0.1, 1),
		maxTPM:       maxTPM,
		recoveryRate: max(initialTPM*0.05, 1),
	}
}

// Wrap returns next behind the limiter.
func (l *AdaptiveRateLimiter) Wrap(next multistep.LLMProvider) multistep.LLMProvider {
	if next == nil {
		return nil
	}
	return &limitedProvider{next: next, limiter: l}
}

// TPM returns the current tokens-per-minute budget.
func (l *AdaptiveRateLimiter) TPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentTPM
}

func (p *limitedProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (multistep.LLMResponse, error) {
	if err := p.limiter.wait(ctx, systemPrompt, userPrompt); err != nil {
		return multistep.LLMResponse{}, err
	}
	resp, err := p.next.Generate(ctx, systemPrompt, userPrompt)
	p.limiter.observe(err)
	return resp, err
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, systemPrompt, userPrompt string) error {
	l.mu.Lock()
	tokens := min(estimateTokens(systemPrompt, userPrompt), l.limiter.Burst())
	l.mu.Unlock()
	return l.limiter.WaitN(ctx, tokens)
}

func (l *AdaptiveRateLimiter) observe(err error) {
	switch {
	case err == nil:
		l.adjust(func(tpm float64) float64 { return tpm + l.recoveryRate })
	case errors.Is(err, llm.ErrRateLimited):
		l.adjust(func(tpm float64) float64 { return tpm * 0.5 })
	}
}

func (l *AdaptiveRateLimiter) adjust(next func(float64) float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tpm := min(max(next(l.currentTPM), l.minTPM), l.maxTPM)
	if tpm == l.currentTPM {
		return
	}
	l.currentTPM = tpm
	l.limiter.SetLimit(rate.Limit(tpm / 60.0))
	l.limiter.SetBurst(int(tpm))
}

// estimateTokens charges roughly one token per three characters of prompt
// plus a fixed allowance for the completion.
func estimateTokens(systemPrompt, userPrompt string) int {
	return (len(systemPrompt)+len(userPrompt))/3 + 500
}
