package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/pipeline"
)

var statementsCmd = &cobra.Command{
	Use:       "statements <balance|cashflow|income>",
	Short:     "Scrape one financial statement for every resolved company",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"balance", "cashflow", "income"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := model.ParseStatementType(args[0])
		if err != nil {
			return err
		}

		env, done, err := newEnv(ctx, "scrape")
		if err != nil {
			return err
		}
		defer done()

		companyID, _ := cmd.Flags().GetString("company-id")
		rep, err := pipeline.Statements(ctx, env, st, companyID)
		formatReport(os.Stderr, rep)
		if err != nil {
			return err
		}
		return ctx.Err()
	},
}

func init() {
	statementsCmd.Flags().String("company-id", "", "scrape only this company, even if already scraped")
	rootCmd.AddCommand(statementsCmd)
}
