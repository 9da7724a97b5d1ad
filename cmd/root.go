package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

const appName = "colppy2gs"

var (
	cfgFile string
	dataDir string
	state   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Colppy inventory to spreadsheet sync",
	Long: `colppy2gs reads accounting and inventory data from the Colppy API.

The sync command copies the stock of one deposit into a spreadsheet sheet,
item by item. An interrupted sync resumes on the next run of the same day.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI and exits 1 on any error.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for config, logs, ledger and templates")
	rootCmd.PersistentFlags().StringVar(&state, "state", "", "Colppy environment: testing or production")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// resolveDataDir picks --data-dir, the directory of --config, or the user
// config dir.
func resolveDataDir() (string, error) {
	switch {
	case dataDir != "":
		return dataDir, os.MkdirAll(dataDir, 0o755)
	case cfgFile != "":
		return filepath.Dir(cfgFile), nil
	}
	return mustAppDataDir(appName), nil
}

func mustAppDataDir(name string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	p := filepath.Join(base, name)
	_ = os.MkdirAll(p, 0o755)
	return p
}
