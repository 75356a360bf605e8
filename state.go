package multistep

import (
	"fmt"
	"strings"
)

// RunState is the append-only record of one decomposition run. It is owned by
// a single StepPlanner.Run call; accessors return copies.
type RunState struct {
	OriginalQuery string

	trace    strings.Builder
	subQA    []SubQA
	evidence []EvidenceFragment
	chunks   []string
	stop     StopReason
}

// StopReason records why the loop ended.
type StopReason string

const (
	// StopBudget means the step budget was exhausted.
	StopBudget StopReason = "budget"
	// StopSignal means the stop predicate fired on a candidate.
	StopSignal StopReason = "signal"
)

// NewRunState initializes an empty state for query.
func NewRunState(query string) *RunState {
	return &RunState{OriginalQuery: query}
}

// record appends one completed step to every log.
func (s *RunState) record(subQuestion string, answer Answer) {
	s.chunks = append(s.chunks, FormatChunk(subQuestion, answer.Text))
	s.evidence = append(s.evidence, answer.Evidence...)
	s.subQA = append(s.subQA, SubQA{SubQuestion: subQuestion, Answer: cloneAnswer(answer)})
	s.trace.WriteString(FormatTraceEntry(subQuestion, answer.Text))
}

// Steps returns the number of answered sub-questions.
func (s *RunState) Steps() int {
	return len(s.subQA)
}

// ReasoningTrace returns the formatted history handed to the decomposer.
func (s *RunState) ReasoningTrace() string {
	return s.trace.String()
}

// SubQA returns the sub-question/answer pairs in execution order.
func (s *RunState) SubQA() []SubQA {
	out := make([]SubQA, len(s.subQA))
	for i, qa := range s.subQA {
		out[i] = SubQA{SubQuestion: qa.SubQuestion, Answer: cloneAnswer(qa.Answer)}
	}
	return out
}

// Evidence returns every fragment collected so far, in step order.
func (s *RunState) Evidence() []EvidenceFragment {
	return append([]EvidenceFragment(nil), s.evidence...)
}

// TextChunks returns the per-step "Question/Answer" blocks.
func (s *RunState) TextChunks() []string {
	return append([]string(nil), s.chunks...)
}

// StopReason reports why the loop ended; empty while running or after a failure.
func (s *RunState) StopReason() StopReason {
	return s.stop
}

// FormatChunk renders the synthesizer content block for one step.
func FormatChunk(subQuestion, answer string) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s", subQuestion, answer)
}

// FormatTraceEntry renders the reasoning trace contribution of one step.
func FormatTraceEntry(subQuestion, answer string) string {
	return fmt.Sprintf("- %s\n- %s\n", subQuestion, answer)
}

func cloneAnswer(a Answer) Answer {
	return Answer{Text: a.Text, Evidence: append([]EvidenceFragment(nil), a.Evidence...)}
}
