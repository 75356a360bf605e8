package multistep

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures an Agent.
type Option func(*Agent)

// WithDecomposer sets the collaborator that proposes sub-questions.
func WithDecomposer(d QueryDecomposer) Option {
	return func(a *Agent) { a.decomposer = d }
}

// WithSynthesizer sets the collaborator that writes the final answer.
func WithSynthesizer(s Synthesizer) Option {
	return func(a *Agent) { a.synthesizer = s }
}

// WithAnswerEngine sets the default engine used when a Request carries none.
func WithAnswerEngine(e AnswerEngine) Option {
	return func(a *Agent) { a.engine = e }
}

// WithMaxSteps sets the default step budget. Zero allows no steps;
// NoStepLimit (the default) removes the cap.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n < 0 {
			n = NoStepLimit
		}
		a.maxSteps = n
	}
}

// WithTimeout bounds each Query, synthesis included. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithStopPredicate replaces the default ContainsNone termination check.
func WithStopPredicate(p StopPredicate) Option {
	return func(a *Agent) {
		if p != nil {
			a.stop = p
		}
	}
}

// WithEmptyPolicy selects what synthesis does when a run recorded no sub-answers.
func WithEmptyPolicy(p EmptyPolicy) Option {
	return func(a *Agent) {
		if p != "" {
			a.empty = p
		}
	}
}

// WithBestEffort makes Query synthesize from the sub-answers gathered before a
// loop failure. The error is still returned alongside the partial result.
func WithBestEffort(enabled bool) Option {
	return func(a *Agent) { a.bestEffort = enabled }
}

// WithLogger sets the logger for run and step records.
func WithLogger(l Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) {
		if t != nil {
			a.tracer = t
		}
	}
}
