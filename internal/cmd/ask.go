package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/internal/config"
)

type askFlags struct {
	file     string
	maxSteps int
	summary  string
	json     bool
}

func newAskCmd(a *app) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question by decomposing it into sub-questions",
		Long: `Ask decomposes the question into sub-questions, answers each one against
the configured search backend, and prints the synthesized answer with the
sources it relied on.

The question is taken from the arguments, or from --file ("-" reads stdin).`,
		Example: `  multistep ask "Where did the founder of Y Combinator go to college?"
  multistep ask --max-steps 3 --json --file question.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, args, f)
		},
	}

	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the question from a file")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "override run.max_steps for this query (-1 for no limit)")
	cmd.Flags().StringVar(&f.summary, "index-summary", "", "describe the knowledge source to the decomposer")
	cmd.Flags().Duration("timeout", 0, "bound the whole run (overrides run.timeout)")
	cmd.Flags().Bool("best-effort", false, "synthesize from partial progress when a run fails")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
	_ = a.v.BindPFlag("run.timeout", cmd.Flags().Lookup("timeout"))
	_ = a.v.BindPFlag("run.best_effort", cmd.Flags().Lookup("best-effort"))
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, args []string, f askFlags) error {
	query, err := readQuery(cmd.InOrStdin(), args, f.file)
	if err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	ctx := logContext(cmd.Context(), cfg.Log, cmd.ErrOrStderr())

	rt, err := a.build(cfg, multistep.NewClueLogger())
	if err != nil {
		return fmt.Errorf("failed to build agent: %w", err)
	}
	defer rt.Close(ctx) //nolint:errcheck

	req := multistep.Request{Query: query, IndexSummary: rt.IndexSummary}
	if f.summary != "" {
		req.IndexSummary = f.summary
	}
	if cmd.Flags().Changed("max-steps") {
		req.MaxSteps = multistep.Limit(f.maxSteps)
	}

	res, runErr := rt.Agent.Query(ctx, req)
	if runErr != nil && !res.Partial {
		return runErr
	}

	out := cmd.OutOrStdout()
	if f.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(out, res)
	}
	return runErr
}

// readQuery joins the positional arguments, or reads the question from file.
func readQuery(stdin io.Reader, args []string, file string) (string, error) {
	var query string
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read question: %w", err)
		}
		query = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read question: %w", err)
		}
		query = string(b)
	default:
		query = strings.Join(args, " ")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("a question is required, as arguments or with --file")
	}
	return query, nil
}

func printResult(w io.Writer, res multistep.FinalResult) {
	if res.Partial {
		fmt.Fprintln(w, "(partial answer: the run stopped early)")
	}
	fmt.Fprintln(w, res.Text)

	if len(res.Metadata.SubQA) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "STEPS")
		fmt.Fprintln(w, strings.Repeat("─", 50))
		for i, qa := range res.Metadata.SubQA {
			fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, qa.SubQuestion, qa.Answer.Text)
		}
	}

	seen := make(map[string]bool)
	var sources []string
	for _, ev := range res.Evidence {
		if ev.Source == "" || seen[ev.Source] {
			continue
		}
		seen[ev.Source] = true
		sources = append(sources, ev.Source)
	}
	if len(sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SOURCES")
		fmt.Fprintln(w, strings.Repeat("─", 50))
		for _, s := range sources {
			fmt.Fprintf(w, "- %s\n", s)
		}
	}
}
