package multistep

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Agent composes a StepPlanner and a ResponseSynthesizer behind one entry point.
type Agent struct {
	decomposer  QueryDecomposer
	synthesizer Synthesizer
	engine      AnswerEngine
	maxSteps    int
	timeout     time.Duration
	stop        StopPredicate
	empty       EmptyPolicy
	bestEffort  bool
	logger      Logger
	tracer      trace.Tracer
}

// Request is one top-level query.
type Request struct {
	Query        string
	IndexSummary string
	// MaxSteps overrides the agent's step budget when non-nil.
	MaxSteps *int
	// Engine overrides the agent's answer engine when non-nil.
	Engine AnswerEngine
}

// Limit returns a pointer suitable for Request.MaxSteps.
func Limit(n int) *int {
	return &n
}

// New constructs an Agent with optional configuration.
func New(opts ...Option) *Agent {
	a := &Agent{
		maxSteps: NoStepLimit,
		stop:     ContainsNone,
		empty:    EmptyAnswer,
		logger:   NewClueLogger(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Query decomposes req.Query into sub-questions, answers them and synthesizes
// the final result. Failures are returned unmodified apart from context errors,
// which additionally match ErrTimeout or ErrCancelled.
func (a *Agent) Query(ctx context.Context, req Request) (FinalResult, error) {
	engine := req.Engine
	if engine == nil {
		engine = a.engine
	}
	if err := a.validate(req, engine); err != nil {
		return FinalResult{}, err
	}
	maxSteps := a.maxSteps
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}

	runID := uuid.NewString()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	ctx, span := a.tracer.Start(ctx, "multistep.query",
		trace.WithAttributes(attribute.String("run_id", runID), attribute.Int("max_steps", maxSteps)))
	defer span.End()

	a.logger.Info(ctx, "run started", "run_id", runID, "query", req.Query, "max_steps", maxSteps)
	start := time.Now()

	planner := NewStepPlanner(a.decomposer,
		WithPlannerStopPredicate(a.stop),
		WithPlannerLogger(a.logger),
		WithPlannerTracer(a.tracer),
	)
	state, err := planner.Run(ctx, req.Query, req.IndexSummary, maxSteps, engine)
	if err != nil {
		err = contextError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "loop")
		a.logger.Error(ctx, "run failed", "run_id", runID, "err", err)
		if a.bestEffort && state != nil && state.Steps() > 0 {
			return a.partial(ctx, runID, state, err)
		}
		return FinalResult{}, err
	}

	res, err := NewResponseSynthesizer(a.synthesizer,
		WithSynthesisEmptyPolicy(a.empty),
		WithSynthesisTracer(a.tracer),
	).Synthesize(ctx, state.OriginalQuery, state.TextChunks(), state.Evidence(), state.SubQA())
	if err != nil {
		err = contextError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesize")
		a.logger.Error(ctx, "synthesis failed", "run_id", runID, "err", err)
		return FinalResult{}, err
	}
	res.RunID = runID
	res.StopReason = state.StopReason()

	span.SetAttributes(attribute.Int("steps", res.Steps), attribute.String("stop_reason", string(res.StopReason)))
	a.logger.Info(ctx, "run finished", "run_id", runID, "steps", res.Steps,
		"stop_reason", string(res.StopReason), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (a *Agent) validate(req Request, engine AnswerEngine) error {
	switch {
	case isBlank(req.Query):
		return ErrEmptyQuery
	case a.decomposer == nil:
		return ErrNoDecomposer
	case a.synthesizer == nil:
		return ErrNoSynthesizer
	case engine == nil:
		return ErrNoAnswerEngine
	}
	return nil
}

// partial synthesizes from an aborted loop. The parent context may already be
// done, so synthesis runs detached from its cancellation and gets a fresh
// budget equal to the configured timeout.
func (a *Agent) partial(ctx context.Context, runID string, state *RunState, loopErr error) (FinalResult, error) {
	sctx := context.WithoutCancel(ctx)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, a.timeout)
		defer cancel()
	}
	res, err := NewResponseSynthesizer(a.synthesizer, WithSynthesisTracer(a.tracer)).
		Synthesize(sctx, state.OriginalQuery, state.TextChunks(), state.Evidence(), state.SubQA())
	if err != nil {
		return FinalResult{}, errors.Join(loopErr, err)
	}
	res.RunID = runID
	res.Partial = true
	a.logger.Warn(ctx, "returning partial result", "run_id", runID, "steps", res.Steps)
	return res, loopErr
}
