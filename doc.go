// Package multistep answers complex questions by breaking them into a
// sequence of simpler sub-questions, answering each against a knowledge
// source, and synthesizing a final response from the accumulated answers.
//
// Each iteration asks a QueryDecomposer for the next sub-question given the
// original query and the reasoning trace so far. The candidate goes to an
// AnswerEngine, and the resulting question/answer pair is appended to the
// run's RunState. The loop ends when the step budget is exhausted or the stop
// predicate fires on a candidate (by default any candidate containing "none").
// A Synthesizer then writes the final answer from the recorded sub-answers.
//
// # Architecture
//
//  1. StepPlanner runs the decompose -> answer -> accumulate loop.
//  2. ResponseSynthesizer turns the recorded sub-answers into a FinalResult
//     whose metadata lists every sub-question and its answer.
//  3. Agent composes both behind Query with a run ID and an optional timeout.
//
// # Basic Usage
//
//	agent := multistep.New(
//	    multistep.WithDecomposer(multistep.NewLLMDecomposer(model, nil)),
//	    multistep.WithSynthesizer(multistep.NewLLMSynthesizer(model, nil)),
//	    multistep.WithAnswerEngine(multistep.NewSearchAnswerEngine(search.NewDuckDuckGo(), model)),
//	    multistep.WithMaxSteps(3),
//	)
//
//	result, err := agent.Query(ctx, multistep.Request{Query: "Where did the founder of X study?"})
//	fmt.Println(result.Text)
//	for _, qa := range result.Metadata.SubQA {
//	    fmt.Println(qa.SubQuestion, "->", qa.Answer.Text)
//	}
//
// # Interfaces
//
// The loop depends on three collaborators:
//
//	type QueryDecomposer interface {
//	    Decompose(ctx context.Context, query, trace, indexSummary string) (string, error)
//	}
//
//	type AnswerEngine interface {
//	    Answer(ctx context.Context, subQuestion string) (Answer, error)
//	}
//
//	type Synthesizer interface {
//	    Synthesize(ctx context.Context, query string, content []string, evidence []EvidenceFragment) (Synthesis, error)
//	}
//
// LLMDecomposer, LLMSynthesizer and SearchAnswerEngine implement them on top
// of LLMProvider and SearchProvider. The scripted package provides
// deterministic versions for tests and demos.
//
// Engines and models can be decorated without touching the loop: the retry
// package retries transient failures, cache memoizes answers in Redis and
// llm/ratelimit throttles model calls.
//
// See the examples/basic directory for a complete example.
package multistep
