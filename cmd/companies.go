package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List the companies available to the configured user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		byName, err := a.client.Companies(cmd.Context())
		if err != nil {
			return err
		}
		printPairs(cmd, byName)
		return nil
	},
}

type costCenterOptions struct {
	ccType  int
	company string
}

var costCentersFlags costCenterOptions

var costCentersCmd = &cobra.Command{
	Use:   "cost-centers",
	Short: "Refresh and list the cost center codes of one type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if costCentersFlags.company != "" {
			codes, err := a.client.CostCenters(ctx, costCentersFlags.ccType, costCentersFlags.company)
			if err != nil {
				return err
			}
			byCode := make(map[string]string, len(codes))
			for _, c := range codes {
				byCode[c.Code] = string(c.ID)
			}
			printPairs(cmd, byCode)
			return nil
		}
		cc := a.client.CostCenterCache()
		if err := cc.Refresh(ctx, costCentersFlags.ccType); err != nil {
			return err
		}
		printPairs(cmd, cc.Codes(costCentersFlags.ccType))
		return nil
	},
}

func init() {
	costCentersCmd.Flags().IntVar(&costCentersFlags.ccType, "type", 1, "cost center type, 1 or 2")
	costCentersCmd.Flags().StringVar(&costCentersFlags.company, "company", "", "company id (default from config)")
	rootCmd.AddCommand(companiesCmd, costCentersCmd)
}

// printPairs prints "key<TAB>value" lines sorted by key.
func printPairs(cmd *cobra.Command, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, m[k])
	}
}
