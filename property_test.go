package multistep_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/scripted"
)

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func TestLoopProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("steps never exceed the budget or the script", prop.ForAll(
		func(questions, maxSteps int) bool {
			d := scripted.Questions(append(numbered("q", questions), "none")...)
			e := scripted.Texts(numbered("a", questions)...)
			state, err := newPlanner(d).Run(context.Background(), "original", "", maxSteps, e)
			if err != nil {
				return false
			}
			want := min(questions, maxSteps)
			return state.Steps() == want &&
				e.Calls() == want &&
				len(state.SubQA()) == want &&
				len(state.TextChunks()) == want &&
				strings.Count(state.ReasoningTrace(), "\n") == 2*want
		},
		gen.IntRange(0, 8),
		gen.IntRange(0, 10),
	))

	properties.Property("stop reason reflects what ended the loop", prop.ForAll(
		func(questions, maxSteps int) bool {
			d := scripted.Questions(append(numbered("q", questions), "none")...)
			e := scripted.Texts(numbered("a", questions)...)
			state, err := newPlanner(d).Run(context.Background(), "original", "", maxSteps, e)
			if err != nil {
				return false
			}
			if maxSteps <= questions {
				return state.StopReason() == multistep.StopBudget
			}
			return state.StopReason() == multistep.StopSignal
		},
		gen.IntRange(0, 8),
		gen.IntRange(0, 10),
	))

	properties.Property("evidence pool is the concatenation of answer evidence", prop.ForAll(
		func(counts []int) bool {
			replies := make([]scripted.Reply, len(counts))
			total := 0
			for i, c := range counts {
				ev := make([]multistep.EvidenceFragment, c)
				for j := range ev {
					ev[j] = multistep.EvidenceFragment{Source: fmt.Sprintf("s%d-%d", i, j)}
				}
				replies[i] = scripted.Reply{Answer: multistep.Answer{Text: "a", Evidence: ev}}
				total += c
			}
			d := scripted.Questions(append(numbered("q", len(counts)), "none")...)
			state, err := newPlanner(d).Run(context.Background(), "original", "", multistep.NoStepLimit, scripted.NewEngine(replies...))
			if err != nil {
				return false
			}
			pool := state.Evidence()
			if len(pool) != total {
				return false
			}
			k := 0
			for i, c := range counts {
				for j := 0; j < c; j++ {
					if pool[k].Source != fmt.Sprintf("s%d-%d", i, j) {
						return false
					}
					k++
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.Property("final metadata mirrors the recorded sub-answers", prop.ForAll(
		func(questions int) bool {
			agent := newAgent(
				multistep.WithDecomposer(scripted.Questions(append(numbered("q", questions), "none")...)),
				multistep.WithSynthesizer(scripted.NewSynthesizer("done")),
				multistep.WithAnswerEngine(scripted.Texts(numbered("a", questions)...)),
			)
			res, err := agent.Query(context.Background(), multistep.Request{Query: "original"})
			if err != nil || res.Steps != questions || len(res.Metadata.SubQA) != questions {
				return false
			}
			for i, qa := range res.Metadata.SubQA {
				if qa.SubQuestion != fmt.Sprintf("q%d", i+1) || qa.Answer.Text != fmt.Sprintf("a%d", i+1) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
