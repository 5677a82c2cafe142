package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Resolve stock detail pages for listed companies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, done, err := newEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer done()

		retry, _ := cmd.Flags().GetBool("retry")
		rep, err := pipeline.URLs(ctx, env, retry)
		formatReport(os.Stderr, rep)
		if err != nil {
			return err
		}
		return ctx.Err()
	},
}

func init() {
	urlsCmd.Flags().Bool("retry", false, "search again only for companies recorded without a detail page")
	rootCmd.AddCommand(urlsCmd)
}
