package multistep

import "context"

// EvidenceFragment is a unit of supporting material an answer was grounded in.
// The loop never inspects or modifies fragments; it only accumulates them.
type EvidenceFragment struct {
	Source  string  `json:"source,omitempty" yaml:"source,omitempty"`
	Title   string  `json:"title,omitempty" yaml:"title,omitempty"`
	Content string  `json:"content,omitempty" yaml:"content,omitempty"`
	Score   float64 `json:"score" yaml:"score"`
}

// Answer is produced by an AnswerEngine for a single sub-question.
type Answer struct {
	Text     string             `json:"text" yaml:"text"`
	Evidence []EvidenceFragment `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// SubQA pairs a sub-question with the answer it received.
type SubQA struct {
	SubQuestion string `json:"sub_question"`
	Answer      Answer `json:"answer"`
}

// QueryDecomposer proposes the next sub-question given the original query,
// the reasoning trace so far and a description of the knowledge source.
type QueryDecomposer interface {
	Decompose(ctx context.Context, query, trace, indexSummary string) (string, error)
}

// AnswerEngine answers one sub-question against a retrieval backend.
type AnswerEngine interface {
	Answer(ctx context.Context, subQuestion string) (Answer, error)
}

// Synthesis is the raw output of a Synthesizer.
type Synthesis struct {
	Text     string
	Metadata map[string]any
}

// Synthesizer writes the final answer from the accumulated content.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, content []string, evidence []EvidenceFragment) (Synthesis, error)
}

// DecomposerFunc adapts a function to QueryDecomposer.
type DecomposerFunc func(ctx context.Context, query, trace, indexSummary string) (string, error)

// Decompose calls f.
func (f DecomposerFunc) Decompose(ctx context.Context, query, trace, indexSummary string) (string, error) {
	return f(ctx, query, trace, indexSummary)
}

// AnswerEngineFunc adapts a function to AnswerEngine.
type AnswerEngineFunc func(ctx context.Context, subQuestion string) (Answer, error)

// Answer calls f.
func (f AnswerEngineFunc) Answer(ctx context.Context, subQuestion string) (Answer, error) {
	return f(ctx, subQuestion)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, query string, content []string, evidence []EvidenceFragment) (Synthesis, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, query string, content []string, evidence []EvidenceFragment) (Synthesis, error) {
	return f(ctx, query, content, evidence)
}

// SearchResult is a single item returned by a SearchProvider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
	// Score is the backend's relevance weight, zero when the backend does not
	// report one.
	Score float64
}

// SearchProvider executes a query and returns results.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// FetchProvider retrieves raw content for a URL.
// The search answer engine uses it to read the top page when snippets are thin.
type FetchProvider interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// LLMResponse is returned by LLMProvider.Generate. Reasoning carries the
// model's thinking output for providers that separate it from the answer.
type LLMResponse struct {
	Text      string
	Reasoning string
}

// LLMProvider is implemented by user-supplied language model clients.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
}
