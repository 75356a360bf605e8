package multistep

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NoStepLimit disables the step budget; the loop then ends only on the stop signal.
const NoStepLimit = -1

const tracerName = "github.com/smhanov/multistep"

// StepPlanner drives the decompose -> answer -> accumulate loop.
type StepPlanner struct {
	decomposer QueryDecomposer
	stop       StopPredicate
	logger     Logger
	tracer     trace.Tracer
}

// PlannerOption configures a StepPlanner.
type PlannerOption func(*StepPlanner)

// WithPlannerStopPredicate replaces the default ContainsNone predicate.
func WithPlannerStopPredicate(p StopPredicate) PlannerOption {
	return func(s *StepPlanner) {
		if p != nil {
			s.stop = p
		}
	}
}

// WithPlannerLogger sets the logger receiving per-step records.
func WithPlannerLogger(l Logger) PlannerOption {
	return func(s *StepPlanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPlannerTracer sets the tracer used for step spans.
func WithPlannerTracer(t trace.Tracer) PlannerOption {
	return func(s *StepPlanner) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewStepPlanner builds a planner around decomposer.
func NewStepPlanner(decomposer QueryDecomposer, opts ...PlannerOption) *StepPlanner {
	p := &StepPlanner{
		decomposer: decomposer,
		stop:       ContainsNone,
		logger:     NewClueLogger(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the loop for query. maxSteps caps the number of answered
// sub-questions; pass NoStepLimit to rely on the stop signal alone.
//
// On failure Run returns the error together with the state accumulated so
// far. The state is only meaningful to callers that opt into partial results.
func (p *StepPlanner) Run(ctx context.Context, query, indexSummary string, maxSteps int, engine AnswerEngine) (*RunState, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if p.decomposer == nil {
		return nil, ErrNoDecomposer
	}
	if engine == nil {
		return nil, ErrNoAnswerEngine
	}

	state := NewRunState(query)
	for {
		if maxSteps >= 0 && state.Steps() >= maxSteps {
			state.stop = StopBudget
			p.logger.Debug(ctx, "step budget exhausted", "steps", state.Steps())
			return state, nil
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}
		done, err := p.step(ctx, state, indexSummary, engine)
		if err != nil {
			return state, err
		}
		if done {
			state.stop = StopSignal
			return state, nil
		}
	}
}

// step runs one iteration and reports whether the stop predicate fired.
func (p *StepPlanner) step(ctx context.Context, state *RunState, indexSummary string, engine AnswerEngine) (bool, error) {
	index := state.Steps()
	ctx, span := p.tracer.Start(ctx, "multistep.step", trace.WithAttributes(attribute.Int("step", index)))
	defer span.End()

	candidate, err := p.decomposer.Decompose(ctx, state.OriginalQuery, state.ReasoningTrace(), indexSummary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decompose")
		return false, &StepError{Stage: StageDecompose, Step: index, Err: err}
	}
	p.logger.Info(ctx, "sub-question", "step", index, "question", candidate)

	if p.stop(candidate) {
		span.AddEvent("stop signal")
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return false, err
	}

	answer, err := engine.Answer(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer")
		return false, &StepError{Stage: StageAnswer, Step: index, Err: err}
	}
	p.logger.Debug(ctx, "sub-answer", "step", index, "answer", answer.Text, "evidence", len(answer.Evidence))
	state.record(candidate, answer)
	return false, nil
}
