package multistep

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EmptyPolicy decides what synthesis does when the run produced no sub-answers.
type EmptyPolicy string

const (
	// EmptyAnswer invokes the Synthesizer with empty content.
	EmptyAnswer EmptyPolicy = "answer"
	// EmptyReject fails with ErrNoContent without calling the Synthesizer.
	EmptyReject EmptyPolicy = "reject"
)

// Metadata is attached to every FinalResult.
type Metadata struct {
	SubQA []SubQA `json:"sub_qa"`
}

// FinalResult is the output of a run.
type FinalResult struct {
	RunID      string             `json:"run_id,omitempty"`
	Text       string             `json:"text"`
	Evidence   []EvidenceFragment `json:"evidence,omitempty"`
	Metadata   Metadata           `json:"metadata"`
	Steps      int                `json:"steps"`
	StopReason StopReason         `json:"stop_reason,omitempty"`
	// Partial is set when a best-effort run synthesized from an aborted loop.
	Partial bool `json:"partial,omitempty"`
}

// ResponseSynthesizer turns the accumulated sub-answers into a FinalResult.
type ResponseSynthesizer struct {
	synth  Synthesizer
	empty  EmptyPolicy
	tracer trace.Tracer
}

// SynthesizerOption configures a ResponseSynthesizer.
type SynthesizerOption func(*ResponseSynthesizer)

// WithSynthesisEmptyPolicy selects the empty-content behavior.
func WithSynthesisEmptyPolicy(p EmptyPolicy) SynthesizerOption {
	return func(r *ResponseSynthesizer) {
		if p != "" {
			r.empty = p
		}
	}
}

// WithSynthesisTracer sets the tracer used for the synthesis span.
func WithSynthesisTracer(t trace.Tracer) SynthesizerOption {
	return func(r *ResponseSynthesizer) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewResponseSynthesizer wraps s.
func NewResponseSynthesizer(s Synthesizer, opts ...SynthesizerOption) *ResponseSynthesizer {
	r := &ResponseSynthesizer{synth: s, empty: EmptyAnswer, tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Synthesize produces the final answer. The collaborator's own metadata is
// dropped; the result carries subQA instead.
func (r *ResponseSynthesizer) Synthesize(ctx context.Context, query string, chunks []string, evidence []EvidenceFragment, subQA []SubQA) (FinalResult, error) {
	if r.synth == nil {
		return FinalResult{}, ErrNoSynthesizer
	}
	if len(chunks) == 0 && r.empty == EmptyReject {
		return FinalResult{}, ErrNoContent
	}

	ctx, span := r.tracer.Start(ctx, "multistep.synthesize",
		trace.WithAttributes(attribute.Int("chunks", len(chunks)), attribute.Int("evidence", len(evidence))))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return FinalResult{}, contextError(err)
	}
	out, err := r.synth.Synthesize(ctx, query, chunks, evidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesize")
		return FinalResult{}, &StepError{Stage: StageSynthesize, Step: len(subQA), Err: err}
	}
	// A collaborator that ignores ctx may finish after the deadline.
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return FinalResult{}, contextError(err)
	}
	return FinalResult{
		Text:     out.Text,
		Evidence: append([]EvidenceFragment(nil), evidence...),
		Metadata: Metadata{SubQA: append([]SubQA(nil), subQA...)},
		Steps:    len(subQA),
	}, nil
}
