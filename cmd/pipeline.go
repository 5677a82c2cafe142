package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/pipeline"
)

// stageModes names the config each stage needs validated.
var stageModes = map[string]string{
	"listing": "scrape",
	"urls":    "scrape",
	"scrape":  "scrape",
	"match":   "match",
	"load":    "load",
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run every step in order",
	Long:  "Runs listing, urls, the statement, market and profile scrapes, match, combine and load. A failed step is reported and the remaining steps still run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		only, _ := cmd.Flags().GetString("only")
		replace, _ := cmd.Flags().GetBool("replace")

		stages, err := pipeline.Plan(pipeline.Options{Only: only, Mode: sinkMode(replace)})
		if err != nil {
			return err
		}

		var modes []string
		seen := map[string]bool{}
		for _, s := range stages {
			if m, ok := stageModes[s.Name]; ok && !seen[m] {
				seen[m] = true
				modes = append(modes, m)
			}
		}
		if len(modes) == 0 {
			modes = []string{"scrape"}
		}

		env, done, err := newEnv(ctx, modes...)
		if err != nil {
			return err
		}
		defer done()

		results, err := pipeline.Run(ctx, env, stages)
		formatStepResults(os.Stdout, results)
		return err
	},
}

func formatStepResults(out io.Writer, results []pipeline.StepResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tSTEP\tSTATUS\tDURATION")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Stage, r.Step, r.Status, r.Duration.Round(time.Second))
	}
	_ = w.Flush()
}

func init() {
	pipelineCmd.Flags().String("only", "", "run a single stage or step (listing, urls, scrape, balance, cashflow, income, market, profile, match, combine, load)")
	pipelineCmd.Flags().Bool("replace", false, "recreate sink tables in the load step")
	rootCmd.AddCommand(pipelineCmd)
}
