package multistep

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	responses []LLMResponse
	err       error
	systems   []string
	users     []string
}

func (f *fakeLLM) Generate(_ context.Context, system, user string) (LLMResponse, error) {
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return LLMResponse{}, errors.New("no scripted response")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

type fakeSearch struct {
	results []SearchResult
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeFetch struct {
	page string
	err  error
	urls []string
}

func (f *fakeFetch) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.page, f.err
}

func TestLLMDecomposer(t *testing.T) {
	m := &fakeLLM{responses: []LLMResponse{{Text: "<think>hmm</think>\nNew question: Who founded X?\nbecause..."}}}
	d := NewLLMDecomposer(m, nil)

	q, err := d.Decompose(context.Background(), "Where did the founder of X study?", "", "Essays")
	require.NoError(t, err)
	require.Equal(t, "Who founded X?", q)
	require.Equal(t, []string{decomposerSystemPrompt}, m.systems)
	require.Contains(t, m.users[0], "Knowledge source: Essays")
}

func TestLLMDecomposerErrors(t *testing.T) {
	_, err := NewLLMDecomposer(nil, nil).Decompose(context.Background(), "q", "", "")
	require.ErrorContains(t, err, "not configured")

	boom := errors.New("rate limited")
	_, err = NewLLMDecomposer(&fakeLLM{err: boom}, nil).Decompose(context.Background(), "q", "", "")
	require.ErrorIs(t, err, boom)

	_, err = NewLLMDecomposer(&fakeLLM{responses: []LLMResponse{{Text: "  "}}}, nil).Decompose(context.Background(), "q", "", "")
	require.ErrorContains(t, err, "no question")
}

func TestLLMSynthesizer(t *testing.T) {
	m := &fakeLLM{responses: []LLMResponse{{Text: "Paul worked in Cambridge."}}}
	s := NewLLMSynthesizer(m, NewNoopLogger())

	out, err := s.Synthesize(context.Background(), "q",
		[]string{FormatChunk("Who is X?", "Paul.")},
		[]EvidenceFragment{{Source: "essay.txt"}, {Source: "bio.txt"}, {Source: "essay.txt"}})
	require.NoError(t, err)
	require.Equal(t, "Paul worked in Cambridge.", out.Text)
	require.Equal(t, []string{"essay.txt", "bio.txt"}, out.Metadata["sources"])
	require.Equal(t, synthesizerSystemPrompt, m.systems[0])
}

func TestSearchAnswerEngine(t *testing.T) {
	long := strings.Repeat("x", minSnippetChars)
	searcher := &fakeSearch{results: []SearchResult{
		{Title: "A", URL: "https://a", Snippet: long, Score: 0.7},
		{Title: "B", URL: "https://b", Snippet: "b"},
		{Title: "C", URL: "https://c", Snippet: "c"},
	}}
	fetcher := &fakeFetch{page: "unused"}
	m := &fakeLLM{responses: []LLMResponse{{Text: "Paul."}}}
	e := NewSearchAnswerEngine(searcher, m, WithFetcher(fetcher), WithMaxResults(2))

	ans, err := e.Answer(context.Background(), "Who is X?")
	require.NoError(t, err)
	require.Equal(t, "Paul.", ans.Text)
	require.Equal(t, []string{"Who is X?"}, searcher.queries)
	require.Empty(t, fetcher.urls)
	require.Equal(t, []EvidenceFragment{
		{Source: "https://a", Title: "A", Content: long, Score: 0.7},
		{Source: "https://b", Title: "B", Content: "b", Score: 0.5},
	}, ans.Evidence)
	require.NotContains(t, m.users[0], "https://c")
}

func TestSearchAnswerEngineFetchesThinResults(t *testing.T) {
	searcher := &fakeSearch{results: []SearchResult{{Title: "A", URL: "https://a", Snippet: "short"}}}
	fetcher := &fakeFetch{page: strings.Repeat("p", maxPageChars+50)}
	m := &fakeLLM{responses: []LLMResponse{{Text: "ok"}}}
	e := NewSearchAnswerEngine(searcher, m, WithFetcher(fetcher))

	_, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a"}, fetcher.urls)
	require.Contains(t, m.users[0], "Top result page:\n"+strings.Repeat("p", maxPageChars)+"\n")
	require.NotContains(t, m.users[0], strings.Repeat("p", maxPageChars+1))
}

func TestSearchAnswerEngineTruncatesOnRuneBoundary(t *testing.T) {
	searcher := &fakeSearch{results: []SearchResult{{Title: "A", URL: "https://a", Snippet: "short"}}}
	page := strings.Repeat("p", maxPageChars-1) + "é" + "tail"
	m := &fakeLLM{responses: []LLMResponse{{Text: "ok"}}}
	e := NewSearchAnswerEngine(searcher, m, WithFetcher(&fakeFetch{page: page}))

	_, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	require.True(t, utf8.ValidString(m.users[0]))
	require.Contains(t, m.users[0], "Top result page:\n"+strings.Repeat("p", maxPageChars-1)+"\n")
}

func TestTruncateUTF8(t *testing.T) {
	require.Equal(t, "abc", truncateUTF8("abc", 5))
	require.Equal(t, "ab", truncateUTF8("abc", 2))
	require.Equal(t, "a", truncateUTF8("aé", 2))
	require.Equal(t, "aé", truncateUTF8("aé", 3))
}

func TestSearchAnswerEngineIgnoresFetchFailure(t *testing.T) {
	searcher := &fakeSearch{results: []SearchResult{{Title: "A", URL: "https://a", Snippet: "short"}}}
	m := &fakeLLM{responses: []LLMResponse{{Text: "ok"}}}
	e := NewSearchAnswerEngine(searcher, m, WithFetcher(&fakeFetch{err: errors.New("403")}))

	ans, err := e.Answer(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "ok", ans.Text)
	require.NotContains(t, m.users[0], "Top result page")
}

func TestSearchAnswerEngineErrors(t *testing.T) {
	boom := errors.New("search down")
	_, err := NewSearchAnswerEngine(&fakeSearch{err: boom}, &fakeLLM{}).Answer(context.Background(), "q")
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "search: ")

	m := &fakeLLM{err: errors.New("model down")}
	_, err = NewSearchAnswerEngine(&fakeSearch{}, m).Answer(context.Background(), "q")
	require.ErrorContains(t, err, "answer model: model down")
	require.Contains(t, m.users[0], "(no results returned)")

	_, err = NewSearchAnswerEngine(nil, m).Answer(context.Background(), "q")
	require.ErrorContains(t, err, "search provider is not configured")
}
