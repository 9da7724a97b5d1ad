package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/spf13/cobra"
)

type listOptions struct {
	from, to string
	company  string
	sheet    string
	ccost1   string
	ccost2   string
}

var listFlags listOptions

func addListFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&listFlags.from, "from", "", "first date, YYYY-MM-DD")
	f.StringVar(&listFlags.to, "to", "", "last date, YYYY-MM-DD")
	f.StringVar(&listFlags.company, "company", "", "company id (default from config)")
	f.StringVar(&listFlags.sheet, "sheet", "", "write the rows to this sheet of the sheet store instead of stdout")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
}

// emitRecords prints records as JSON, or writes them to --sheet.
func emitRecords(ctx context.Context, cmd *cobra.Command, a *app, records []colppy.Record) error {
	if listFlags.sheet == "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	store := a.cfg.SheetStore
	gw, err := sheets.Open(ctx, a.component("sheets"), store, a.cfg.Store(store))
	if err != nil {
		return err
	}
	if c, ok := gw.(interface{ Close() error }); ok {
		defer c.Close()
	}
	if err := gw.WriteTable(ctx, listFlags.sheet, recordsTable(records), sheets.Cell{Row: 1, Col: 1}, false); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s (%s)\n", len(records), listFlags.sheet, gw.Location())
	return nil
}

// recordsTable lays records out with one column per field, sorted by name.
func recordsTable(records []colppy.Record) *sheets.Table {
	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	t := sheets.NewTable("#", cols)
	for i, r := range records {
		values := make(map[string]string, len(r))
		for k := range r {
			values[k] = r.String(k)
		}
		t.Append(strconv.Itoa(i+1), values)
	}
	return t
}
