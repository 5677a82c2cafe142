package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/artifact"
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Rebuild the combined files from per-company outputs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		results, err := artifact.NewLayout(cfg.Paths).CombineAll(cmd.Context())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "OUTPUT\tFILES\tROWS\tSKIPPED")
		for _, r := range results {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Output, r.Files, r.Rows, len(r.Skipped))
		}
		_ = w.Flush()
		return err
	},
}

func init() {
	rootCmd.AddCommand(combineCmd)
}
