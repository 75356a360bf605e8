package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smhanov/multistep"
)

const redacted = "********"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := a.v.AllSettings()
			scrub(settings)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(settings); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "predicates",
		Short: "List the stop predicates run.stop_predicate accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(multistep.StopPredicateNames(), "\n"))
		},
	})
	return cmd
}

// scrub blanks non-empty credentials in a nested settings map and renders
// durations in their readable form.
func scrub(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			scrub(val)
		case time.Duration:
			m[k] = val.String()
		case string:
			if val != "" && (k == "api_key" || k == "password") {
				m[k] = redacted
			}
		}
	}
}
