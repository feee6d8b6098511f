package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ianandersonlol/hivemigrate/pkg/rules"
)

func newRulesCmd() *cobra.Command {
	var high bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective migration rule table in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			set, err := buildRuleSet(cfg, high)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := range set {
				r := &set[i]
				fmt.Fprintf(out, "%2d. %-22s %-13s", i+1, r.Name, matcherShape(r))
				if r.FileFilterGlob != "" {
					fmt.Fprintf(out, " files=%s", r.FileFilterGlob)
				}
				if r.ToText != "" {
					fmt.Fprintf(out, " -> %s", r.ToText)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&high, "high", false, "show the high-partition variant of the table")
	return cmd
}

func matcherShape(r *rules.Rule) string {
	switch {
	case r.Transform != nil:
		return "computed"
	case r.FromText != "":
		return "literal"
	case len(r.Patterns) > 0:
		return "multi-pattern"
	default:
		return "regexp"
	}
}
