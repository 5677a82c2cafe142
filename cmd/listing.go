package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Refresh the list of listed companies",
	Long:  "Scrapes the company directory of every configured market. By default unseen companies are appended to the existing listing; --full replaces it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, done, err := newEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer done()

		full, _ := cmd.Flags().GetBool("full")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		res, err := pipeline.Listing(ctx, env, pipeline.ListingOptions{Update: !full, DryRun: dryRun})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Scraped %d rows, listing has %d companies, %d new.\n", res.Scraped, res.Total, len(res.Added))
		for _, c := range res.Added {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", c.CompanyID, c.CompanyName)
		}
		return nil
	},
}

func init() {
	listingCmd.Flags().Bool("update", false, "append unseen companies to the existing listing (default)")
	listingCmd.Flags().Bool("full", false, "replace the listing with a fresh scrape")
	listingCmd.Flags().Bool("dry-run", false, "scrape and report without writing files")
	listingCmd.MarkFlagsMutuallyExclusive("update", "full")
	rootCmd.AddCommand(listingCmd)
}
