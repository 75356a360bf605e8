package multistep

import (
	"fmt"
	"regexp"
	"strings"
)

const decomposerSystemPrompt = "You break a complex question into a sequence of simpler questions that a knowledge source can answer one at a time. Output exactly one question and nothing else. When the previous reasoning already answers the original question, or the knowledge source cannot add anything more, output None."

const answerSystemPrompt = "You answer a single question using only the provided search results. Be brief and factual. If the results do not contain the answer, say so plainly."

const synthesizerSystemPrompt = "You write the final answer to a question from a set of intermediate questions and answers. Use only that material. If it is insufficient, say so clearly."

const decomposerExamples = `Example 1
Original question: Who was in the first batch of the accelerator program the author started?
Knowledge source: Essay about the author's life in the 1990s and 2000s.
Previous reasoning:
- Which accelerator program did the author start?
- The author started Y Combinator.
New question: Who was in the first batch of Y Combinator?

Example 2
Original question: How many Grand Slam titles does the winner of the 2020 Australian Open have?
Knowledge source: Web search over sports news.
Previous reasoning: (none yet)
New question: Who won the 2020 Australian Open?

Example 3
Original question: How many Grand Slam titles does the winner of the 2020 Australian Open have?
Knowledge source: Web search over sports news.
Previous reasoning:
- Who won the 2020 Australian Open?
- Novak Djokovic won the 2020 Australian Open.
- How many Grand Slam titles does Novak Djokovic have?
- Novak Djokovic has 24 Grand Slam titles.
New question: None`

func buildDecomposerUserPrompt(query, trace, indexSummary string) string {
	var b strings.Builder
	b.WriteString(decomposerExamples)
	b.WriteString("\n\nNow your turn.\nOriginal question: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\nKnowledge source: ")
	if isBlank(indexSummary) {
		b.WriteString("(no description)")
	} else {
		b.WriteString(strings.TrimSpace(indexSummary))
	}
	b.WriteString("\nPrevious reasoning:")
	if isBlank(trace) {
		b.WriteString(" (none yet)\n")
	} else {
		b.WriteString("\n")
		b.WriteString(trace)
	}
	b.WriteString("New question:")
	return b.String()
}

func buildAnswerUserPrompt(question string, results []SearchResult, page string) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSearch Results (title | url | snippet):\n")
	if len(results) == 0 {
		b.WriteString("(no results returned)\n")
	}
	for i, r := range results {
		b.WriteString(fmt.Sprintf("%d. %s | %s | %s\n", i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.URL), strings.TrimSpace(r.Snippet)))
	}
	if page != "" {
		b.WriteString("\nTop result page:\n")
		b.WriteString(page)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer the question in one or two sentences.")
	return b.String()
}

func buildSynthesizerUserPrompt(query string, content []string, evidence []EvidenceFragment) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(query)
	b.WriteString("\n\nIntermediate questions and answers:\n")
	if len(content) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, c := range content {
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	if sources := evidenceSources(evidence); len(sources) > 0 {
		b.WriteString("Sources:\n")
		for i, s := range sources {
			b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, s))
		}
	}
	b.WriteString("\nWrite a direct answer to the question. If the material is insufficient, say 'I could not find enough information.'")
	return b.String()
}

// evidenceSources lists distinct fragment sources in first-seen order.
func evidenceSources(evidence []EvidenceFragment) []string {
	seen := make(map[string]bool, len(evidence))
	var out []string
	for _, e := range evidence {
		src := strings.TrimSpace(e.Source)
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)                 //nolint:gochecknoglobals
var questionLabelRegex = regexp.MustCompile(`(?i)^\s*(new\s+)?question\s*:\s*`) //nolint:gochecknoglobals

// StripThinkBlocks removes <think>...</think> blocks from LLM responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// responseText extracts usable text from an LLM response. It strips <think>
// blocks from Text first and falls back to Reasoning when Text is empty.
func responseText(resp LLMResponse) string {
	if text := StripThinkBlocks(resp.Text); text != "" {
		return text
	}
	return StripThinkBlocks(resp.Reasoning)
}

// parseSubQuestion keeps the first non-empty line of the decomposer output
// and drops a leading "New question:" label.
func parseSubQuestion(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(questionLabelRegex.ReplaceAllString(line, ""))
		if line != "" {
			return line
		}
	}
	return ""
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
