// Package scripted provides deterministic collaborators for demos and tests.
// Each collaborator replays a fixed sequence of outputs and records what it
// was called with, so loop behavior can be checked step by step.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smhanov/multistep"
)

// ErrExhausted is returned once a script has no more entries.
var ErrExhausted = errors.New("script exhausted")

// Turn is one decomposer output.
type Turn struct {
	Question string
	Err      error
}

// Reply is one answer engine output.
type Reply struct {
	Answer multistep.Answer
	Err    error
}

// Decomposer replays Turns in order and records the trace seen at each call.
type Decomposer struct {
	mu     sync.Mutex
	turns  []Turn
	index  int
	traces []string
}

var _ multistep.QueryDecomposer = (*Decomposer)(nil)

// NewDecomposer builds a decomposer from explicit turns.
func NewDecomposer(turns ...Turn) *Decomposer {
	return &Decomposer{turns: append([]Turn(nil), turns...)}
}

// Questions builds a decomposer that returns each question in turn.
func Questions(questions ...string) *Decomposer {
	turns := make([]Turn, len(questions))
	for i, q := range questions {
		turns[i] = Turn{Question: q}
	}
	return NewDecomposer(turns...)
}

func (d *Decomposer) Decompose(_ context.Context, _, trace, _ string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.traces = append(d.traces, trace)
	if d.index >= len(d.turns) {
		return "", fmt.Errorf("decomposer: %w at call %d", ErrExhausted, d.index+1)
	}
	t := d.turns[d.index]
	d.index++
	if t.Err != nil {
		return "", t.Err
	}
	return t.Question, nil
}

// Traces returns the reasoning trace passed to every call, in call order.
func (d *Decomposer) Traces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.traces...)
}

// Calls returns the number of Decompose calls.
func (d *Decomposer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.traces)
}

// Engine replays Replies in order and records the sub-questions it received.
type Engine struct {
	mu        sync.Mutex
	replies   []Reply
	questions []string
}

var _ multistep.AnswerEngine = (*Engine)(nil)

// NewEngine builds an engine from explicit replies.
func NewEngine(replies ...Reply) *Engine {
	return &Engine{replies: append([]Reply(nil), replies...)}
}

// Texts builds an engine answering with each text in turn and no evidence.
func Texts(texts ...string) *Engine {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Answer: multistep.Answer{Text: t}}
	}
	return NewEngine(replies...)
}

func (e *Engine) Answer(_ context.Context, subQuestion string) (multistep.Answer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	index := len(e.questions)
	e.questions = append(e.questions, subQuestion)
	if index >= len(e.replies) {
		return multistep.Answer{}, fmt.Errorf("engine: %w at call %d", ErrExhausted, index+1)
	}
	r := e.replies[index]
	if r.Err != nil {
		return multistep.Answer{}, r.Err
	}
	return r.Answer, nil
}

// Questions returns every sub-question received, in order.
func (e *Engine) Questions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.questions...)
}

// Calls returns the number of Answer calls.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.questions)
}

// Synthesizer returns a fixed text and records its inputs.
type Synthesizer struct {
	mu       sync.Mutex
	text     string
	err      error
	metadata map[string]any
	calls    int
	content  []string
	evidence []multistep.EvidenceFragment
}

var _ multistep.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer returns a synthesizer answering text.
func NewSynthesizer(text string) *Synthesizer {
	return &Synthesizer{text: text, metadata: map[string]any{"synthesizer": "scripted"}}
}

// Failing returns a synthesizer that always fails with err.
func Failing(err error) *Synthesizer {
	return &Synthesizer{err: err}
}

func (s *Synthesizer) Synthesize(_ context.Context, _ string, content []string, evidence []multistep.EvidenceFragment) (multistep.Synthesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.content = append([]string(nil), content...)
	s.evidence = append([]multistep.EvidenceFragment(nil), evidence...)
	if s.err != nil {
		return multistep.Synthesis{}, s.err
	}
	return multistep.Synthesis{Text: s.text, Metadata: s.metadata}, nil
}

// Calls returns the number of Synthesize calls.
func (s *Synthesizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Content returns the content passed to the last call.
func (s *Synthesizer) Content() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.content...)
}

// Evidence returns the evidence passed to the last call.
func (s *Synthesizer) Evidence() []multistep.EvidenceFragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]multistep.EvidenceFragment(nil), s.evidence...)
}
