package cmd

import (
	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/spf13/cobra"
)

var diaryCmd = &cobra.Command{
	Use:   "diary",
	Short: "List ledger movements, optionally by cost center",
	Example: `  colppy2gs diary --from 2024-01-01 --to 2024-01-31
  colppy2gs diary --from 2024-01-01 --to 2024-01-31 --ccost1 Local --sheet diario`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		movs, err := a.client.FilteredDiary(ctx, colppy.DiaryQuery{
			Dates:       []string{listFlags.from, listFlags.to},
			CompanyID:   listFlags.company,
			CostCenter1: listFlags.ccost1,
			CostCenter2: listFlags.ccost2,
		})
		if err != nil {
			return err
		}
		return emitRecords(ctx, cmd, a, movs)
	},
}

func init() {
	addListFlags(diaryCmd)
	diaryCmd.Flags().StringVar(&listFlags.ccost1, "ccost1", "", "cost center of type 1, by name")
	diaryCmd.Flags().StringVar(&listFlags.ccost2, "ccost2", "", "cost center of type 2, by name")
	rootCmd.AddCommand(diaryCmd)
}
