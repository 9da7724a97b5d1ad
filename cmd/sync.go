package cmd

import (
	"fmt"
	"strings"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/syncer"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	deposit     string
	sheetStore  string
	spreadsheet string
	batchSize   int
	filter      string
	company     string
}

var syncFlags syncOptions

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the stock of one deposit into the sheet store",
	Long: `Fetches the inventory once, then looks up every item's stock and writes
the deposit's values in batches to temp_<deposit>_<dd-mm-YYYY>. When all rows
are done the table is written to <deposit>_<dd-mm-YYYY> and the working sheet
is deleted. Rerunning on the same day resumes the working sheet.`,
	Example: `  colppy2gs sync --deposit Local
  colppy2gs sync --deposit Local --sheet-store gsheets --spreadsheet 1AbC...
  colppy2gs sync --deposit Local --filter 'tipoItem == "P"'`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncFlags.deposit, "deposit", "", "deposit name, as Colppy shows it")
	f.StringVar(&syncFlags.sheetStore, "sheet-store", "", "sheet backend: "+strings.Join(sheets.Names(), ", "))
	f.StringVar(&syncFlags.spreadsheet, "spreadsheet", "", "workbook path (xlsx) or spreadsheet id (gsheets)")
	f.IntVar(&syncFlags.batchSize, "batch-size", 0, "rows per upload (default from config)")
	f.StringVar(&syncFlags.filter, "filter", "", "expression selecting inventory items")
	f.StringVar(&syncFlags.company, "company", "", "company id (default from config)")
	_ = syncCmd.MarkFlagRequired("deposit")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	store := cfg.SheetStore
	if syncFlags.sheetStore != "" {
		store = syncFlags.sheetStore
	}
	if syncFlags.spreadsheet != "" {
		key := "path"
		if store == "gsheets" {
			key = "spreadsheet_id"
		}
		if err := cfg.SetStoreField(store, key, syncFlags.spreadsheet); err != nil {
			return err
		}
	}
	gw, err := sheets.Open(ctx, a.component("sheets"), store, cfg.Store(store))
	if err != nil {
		return err
	}
	if c, ok := gw.(interface{ Close() error }); ok {
		defer c.Close()
	}

	src := cfg.Sync.Filter
	if syncFlags.filter != "" {
		src = syncFlags.filter
	}
	filter, err := syncer.NewFilter(src)
	if err != nil {
		return err
	}
	batch := cfg.Sync.BatchSize
	if syncFlags.batchSize > 0 {
		batch = syncFlags.batchSize
	}

	s := syncer.New(a.component("syncer"), a.client, gw, syncer.Options{
		BatchSize:         batch,
		SessionCheckEvery: cfg.Sync.SessionCheckEvery,
		CompanyID:         syncFlags.company,
		Filter:            filter,
		Recorder:          a.db.Ledger(a.component("ledger"), store),
		Metrics:           a.metrics,
	})
	sum, err := s.Run(ctx, syncFlags.deposit)
	if sum != nil {
		printSummary(cmd, sum, err == nil)
	}
	return err
}

func printSummary(cmd *cobra.Command, s *syncer.Summary, done bool) {
	out := cmd.OutOrStdout()
	sheet := s.FinalSheet
	if !done {
		sheet = s.TempSheet
	}
	fmt.Fprintf(out, "run id:    %s\n", s.RunID)
	fmt.Fprintf(out, "sheet:     %s\n", sheet)
	fmt.Fprintf(out, "resumed:   %t\n", s.Resumed)
	fmt.Fprintf(out, "processed: %d/%d\n", s.Processed, s.Pending)
	fmt.Fprintf(out, "failed:    %d\n", s.Failed)
	fmt.Fprintf(out, "flushes:   %d\n", s.Flushes)
	fmt.Fprintf(out, "location:  %s\n", s.Location)
}
