package multistep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// LLMDecomposer implements QueryDecomposer with a language model.
type LLMDecomposer struct {
	model  LLMProvider
	logger Logger
}

// NewLLMDecomposer returns a decomposer prompting m for one sub-question per call.
func NewLLMDecomposer(m LLMProvider, logger Logger) *LLMDecomposer {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &LLMDecomposer{model: m, logger: logger}
}

// Decompose asks the model for the next sub-question.
func (d *LLMDecomposer) Decompose(ctx context.Context, query, trace, indexSummary string) (string, error) {
	if d.model == nil {
		return "", errors.New("decomposer model is not configured")
	}
	user := buildDecomposerUserPrompt(query, trace, indexSummary)
	d.logger.Debug(ctx, "decomposer prompt", "system", decomposerSystemPrompt, "user", user)
	resp, err := d.model.Generate(ctx, decomposerSystemPrompt, user)
	if err != nil {
		return "", err
	}
	d.logger.Debug(ctx, "decomposer response", "text", resp.Text)
	question := parseSubQuestion(responseText(resp))
	if question == "" {
		return "", errors.New("decomposer returned no question")
	}
	return question, nil
}

// LLMSynthesizer implements Synthesizer with a language model.
type LLMSynthesizer struct {
	model  LLMProvider
	logger Logger
}

// NewLLMSynthesizer returns a synthesizer prompting m with the sub-answers.
func NewLLMSynthesizer(m LLMProvider, logger Logger) *LLMSynthesizer {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &LLMSynthesizer{model: m, logger: logger}
}

// Synthesize writes the final answer. Metadata lists the cited sources.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, content []string, evidence []EvidenceFragment) (Synthesis, error) {
	if s.model == nil {
		return Synthesis{}, errors.New("synthesizer model is not configured")
	}
	user := buildSynthesizerUserPrompt(query, content, evidence)
	s.logger.Debug(ctx, "synthesizer prompt", "system", synthesizerSystemPrompt, "user", user)
	resp, err := s.model.Generate(ctx, synthesizerSystemPrompt, user)
	if err != nil {
		return Synthesis{}, err
	}
	s.logger.Debug(ctx, "synthesizer response", "text", resp.Text)
	return Synthesis{
		Text:     responseText(resp),
		Metadata: map[string]any{"sources": evidenceSources(evidence)},
	}, nil
}

const (
	defaultMaxResults = 5
	// minSnippetChars is the combined snippet length below which the engine
	// fetches the top page, when a fetcher is configured.
	minSnippetChars = 200
	maxPageChars    = 4000
)

// SearchAnswerEngine answers sub-questions by searching, then asking a model
// to answer from the results.
type SearchAnswerEngine struct {
	searcher   SearchProvider
	fetcher    FetchProvider
	model      LLMProvider
	maxResults int
	logger     Logger
}

// SearchEngineOption configures a SearchAnswerEngine.
type SearchEngineOption func(*SearchAnswerEngine)

// WithFetcher lets the engine read the top result page when snippets are thin.
func WithFetcher(f FetchProvider) SearchEngineOption {
	return func(e *SearchAnswerEngine) { e.fetcher = f }
}

// WithMaxResults caps how many results become evidence.
func WithMaxResults(n int) SearchEngineOption {
	return func(e *SearchAnswerEngine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// WithEngineLogger sets the logger for prompts and fetch failures.
func WithEngineLogger(l Logger) SearchEngineOption {
	return func(e *SearchAnswerEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewSearchAnswerEngine builds an AnswerEngine over a search backend and a model.
func NewSearchAnswerEngine(searcher SearchProvider, m LLMProvider, opts ...SearchEngineOption) *SearchAnswerEngine {
	e := &SearchAnswerEngine{searcher: searcher, model: m, maxResults: defaultMaxResults, logger: NewNoopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer searches for subQuestion and answers it from the results.
func (e *SearchAnswerEngine) Answer(ctx context.Context, subQuestion string) (Answer, error) {
	if e.searcher == nil {
		return Answer{}, errors.New("search provider is not configured")
	}
	if e.model == nil {
		return Answer{}, errors.New("answer model is not configured")
	}
	results, err := e.searcher.Search(ctx, subQuestion)
	if err != nil {
		return Answer{}, fmt.Errorf("search: %w", err)
	}
	if len(results) > e.maxResults {
		results = results[:e.maxResults]
	}

	page := e.fetchTop(ctx, results)
	user := buildAnswerUserPrompt(subQuestion, results, page)
	e.logger.Debug(ctx, "answer prompt", "system", answerSystemPrompt, "user", user)
	resp, err := e.model.Generate(ctx, answerSystemPrompt, user)
	if err != nil {
		return Answer{}, fmt.Errorf("answer model: %w", err)
	}
	return Answer{Text: responseText(resp), Evidence: toEvidence(results)}, nil
}

// fetchTop reads the first result page when the snippets alone are short.
// Fetch failures are logged and ignored; the snippets still stand.
func (e *SearchAnswerEngine) fetchTop(ctx context.Context, results []SearchResult) string {
	if e.fetcher == nil || len(results) == 0 || strings.TrimSpace(results[0].URL) == "" {
		return ""
	}
	total := 0
	for _, r := range results {
		total += len(strings.TrimSpace(r.Snippet))
	}
	if total >= minSnippetChars {
		return ""
	}
	page, err := e.fetcher.Fetch(ctx, results[0].URL)
	if err != nil {
		e.logger.Warn(ctx, "fetch failed", "url", results[0].URL, "err", err.Error())
		return ""
	}
	return truncateUTF8(page, maxPageChars)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// toEvidence maps results to fragments. Results without a backend score are
// weighted by rank as 1/(rank+1).
func toEvidence(results []SearchResult) []EvidenceFragment {
	out := make([]EvidenceFragment, 0, len(results))
	for i, r := range results {
		score := r.Score
		if score == 0 {
			score = 1 / float64(i+1)
		}
		out = append(out, EvidenceFragment{
			Source:  r.URL,
			Title:   r.Title,
			Content: r.Snippet,
			Score:   score,
		})
	}
	return out
}
