package multistep

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every error reported for missing inputs
	// or collaborators before any collaborator is invoked.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyQuery is returned when the query is empty or blank.
	ErrEmptyQuery = fmt.Errorf("%w: query is empty", ErrConfiguration)
	// ErrNoDecomposer is returned when no QueryDecomposer is configured.
	ErrNoDecomposer = fmt.Errorf("%w: query decomposer is not configured", ErrConfiguration)
	// ErrNoAnswerEngine is returned when no AnswerEngine is supplied.
	ErrNoAnswerEngine = fmt.Errorf("%w: answer engine is not configured", ErrConfiguration)
	// ErrNoSynthesizer is returned when no Synthesizer is configured.
	ErrNoSynthesizer = fmt.Errorf("%w: synthesizer is not configured", ErrConfiguration)

	// ErrDecomposition is matched by failures of the QueryDecomposer.
	ErrDecomposition = errors.New("decomposition failed")
	// ErrAnswer is matched by failures of the AnswerEngine.
	ErrAnswer = errors.New("answer failed")
	// ErrSynthesis is matched by failures of the Synthesizer.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrNoContent is returned by ResponseSynthesizer under EmptyReject when
	// the run recorded no sub-answers.
	ErrNoContent = errors.New("no sub-answers to synthesize")

	// ErrTimeout is matched when the run-level deadline expires.
	ErrTimeout = errors.New("run timed out")
	// ErrCancelled is matched when the caller cancels the run.
	ErrCancelled = errors.New("run cancelled")
)

// Stage identifies which collaborator call failed.
type Stage string

const (
	StageDecompose  Stage = "decompose"
	StageAnswer     Stage = "answer"
	StageSynthesize Stage = "synthesize"
)

// StepError reports a collaborator failure. Step is the zero-based index of
// the step being executed; it is the number of completed steps for synthesis.
type StepError struct {
	Stage Stage
	Step  int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (step %d): %v", e.Stage, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failing stage.
func (e *StepError) Is(target error) bool {
	switch target {
	case ErrDecomposition:
		return e.Stage == StageDecompose
	case ErrAnswer:
		return e.Stage == StageAnswer
	case ErrSynthesis:
		return e.Stage == StageSynthesize
	}
	return false
}

// contextError maps a context failure to ErrTimeout or ErrCancelled while
// keeping the original context error in the chain.
func contextError(err error) error {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrCancelled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}
