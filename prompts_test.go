package multistep

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripThinkBlocks(t *testing.T) {
	require.Equal(t, "Who founded X?", StripThinkBlocks("<think>\nlet me see\n</think>\nWho founded X?"))
	require.Equal(t, "a b", StripThinkBlocks("a <think>x</think>b"))
	require.Equal(t, "plain", StripThinkBlocks("  plain  "))
}

func TestResponseTextFallsBackToReasoning(t *testing.T) {
	require.Equal(t, "text", responseText(LLMResponse{Text: "text", Reasoning: "r"}))
	require.Equal(t, "r", responseText(LLMResponse{Text: "<think>only thoughts</think>", Reasoning: "r"}))
	require.Empty(t, responseText(LLMResponse{}))
}

func TestParseSubQuestion(t *testing.T) {
	cases := map[string]string{
		"Who founded X?":                       "Who founded X?",
		"New question: Who founded X?":         "Who founded X?",
		"  question:   Who founded X?\nextra":  "Who founded X?",
		"\n\nNew Question: None\nExplanation.": "None",
		"New question:\nWho founded X?":        "Who founded X?",
		"   \n  ":                              "",
	}
	for in, want := range cases {
		require.Equal(t, want, parseSubQuestion(in), "input %q", in)
	}
}

func TestDecomposerPrompt(t *testing.T) {
	p := buildDecomposerUserPrompt("Where did X do Y?", "", "")
	require.True(t, strings.HasPrefix(p, decomposerExamples))
	require.Contains(t, p, "Original question: Where did X do Y?")
	require.Contains(t, p, "Knowledge source: (no description)")
	require.True(t, strings.HasSuffix(p, "Previous reasoning: (none yet)\nNew question:"))

	trace := FormatTraceEntry("Who is X?", "X is Paul.")
	p = buildDecomposerUserPrompt("Where did X do Y?", trace, "Essays")
	require.Contains(t, p, "Knowledge source: Essays")
	require.True(t, strings.HasSuffix(p, "Previous reasoning:\n- Who is X?\n- X is Paul.\nNew question:"))
}

func TestAnswerPrompt(t *testing.T) {
	p := buildAnswerUserPrompt("q", []SearchResult{{Title: "T", URL: "https://e.x", Snippet: " s "}}, "page body")
	require.Contains(t, p, "1. T | https://e.x | s\n")
	require.Contains(t, p, "Top result page:\npage body\n")

	p = buildAnswerUserPrompt("q", nil, "")
	require.Contains(t, p, "(no results returned)")
	require.NotContains(t, p, "Top result page")
}

func TestSynthesizerPrompt(t *testing.T) {
	evidence := []EvidenceFragment{{Source: "a"}, {Source: "b"}, {Source: "a"}, {Source: " "}}
	p := buildSynthesizerUserPrompt("q", []string{FormatChunk("q1", "a1")}, evidence)
	require.Contains(t, p, "Question: q1\nAnswer: a1\n\n")
	require.Contains(t, p, "Sources:\n[1] a\n[2] b\n")

	p = buildSynthesizerUserPrompt("q", nil, nil)
	require.Contains(t, p, "(empty)")
	require.NotContains(t, p, "Sources:")
}
