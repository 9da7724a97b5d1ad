package cmd

import "github.com/spf13/cobra"

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List sales invoices between two dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		invoices, err := a.client.Invoices(ctx, []string{listFlags.from, listFlags.to}, listFlags.company)
		if err != nil {
			return err
		}
		return emitRecords(ctx, cmd, a, invoices)
	},
}

func init() {
	addListFlags(invoicesCmd)
	rootCmd.AddCommand(invoicesCmd)
}
