package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Scrape company profile, management and shareholding sections",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, done, err := newEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer done()

		companyID, _ := cmd.Flags().GetString("company-id")
		rep, err := pipeline.Profiles(ctx, env, companyID)
		formatReport(os.Stderr, rep)
		if err != nil {
			return err
		}
		return ctx.Err()
	},
}

func init() {
	profileCmd.Flags().String("company-id", "", "scrape only this company, even if already scraped")
	rootCmd.AddCommand(profileCmd)
}
