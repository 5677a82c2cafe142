package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match listed company names to registry records",
	Long:  "Queries the company registry for every listed name not yet matched and keeps the most similar record. Interrupted runs keep what was matched so far.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, done, err := newEnv(ctx, "match")
		if err != nil {
			return err
		}
		defer done()

		n, err := pipeline.Match(ctx, env)
		fmt.Fprintf(os.Stderr, "%d registry records written.\n", n)
		return err
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
