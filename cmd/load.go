package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/load"
	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Normalize the combined files and write them to Postgres",
	Long:  "Joins every combined artifact to its registry record, cleans and keys it, and writes it to the sink. By default only rows with a new key are inserted; --replace recreates every table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("load"); err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")

		env := pipeline.NewEnv(cfg, nil)
		results, err := pipeline.Load(ctx, env, sinkMode(replace))
		formatLoadResults(os.Stdout, results)
		return err
	},
}

func sinkMode(replace bool) load.Mode {
	if replace {
		return load.Replace
	}
	return load.Append
}

func formatLoadResults(out io.Writer, results []load.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tROWS\tINSERTED\tSTATUS")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed"
		case r.Skipped:
			status = "skipped"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Dataset, r.Rows, r.Inserted, status)
	}
	_ = w.Flush()
}

func init() {
	loadCmd.Flags().Bool("replace", false, "drop and recreate every table instead of appending new keys")
	rootCmd.AddCommand(loadCmd)
}
