// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/rs/zerolog"
)

// InventorySource is the part of the Colppy client the sync needs.
type InventorySource interface {
	Inventory(ctx context.Context, companyID string) ([]colppy.Record, error)
	DepositsForItem(ctx context.Context, itemID, companyID string) ([]colppy.Record, error)
	EnsureSession(ctx context.Context) error
}

// Recorder keeps a ledger of runs. Implementations log their own failures;
// the sync never stops because of them.
type Recorder interface {
	RunStarted(ctx context.Context, s *Summary)
	ItemFailed(ctx context.Context, runID, itemID string, err error)
	RunFinished(ctx context.Context, s *Summary, runErr error)
}

type Metrics interface {
	ItemProcessed(ctx context.Context, deposit string, failed bool)
	BatchFlushed(ctx context.Context, deposit string)
}

type Options struct {
	BatchSize         int // default 100
	SessionCheckEvery int // default 300
	CompanyID         string
	Filter            *Filter
	Now               func() time.Time
	Recorder          Recorder
	Metrics           Metrics
}

const (
	DefaultBatchSize         = 100
	DefaultSessionCheckEvery = 300
)

var (
	ErrZeroItem        = errors.New("item id 0")
	ErrDepositNotFound = errors.New("no stock row for deposit")
)

// RowError is a failure contained to one item. Its row is marked "Error".
type RowError struct {
	ItemID string
	Err    error
}

func (e *RowError) Error() string { return fmt.Sprintf("item %s: %v", e.ItemID, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// UnknownDepositError marks an item whose stock lists no row for the
// requested deposit. Only the first looked-up item reports it; later ones
// get ErrDepositNotFound.
type UnknownDepositError struct {
	Deposit   string
	Available []string
}

func (e *UnknownDepositError) Error() string {
	return fmt.Sprintf("deposit %q not available, available deposits: %s", e.Deposit, strings.Join(e.Available, ", "))
}

func (e *UnknownDepositError) Unwrap() error { return ErrDepositNotFound }

// ItemResult is the outcome of one lookup. Err is nil or a *RowError.
type ItemResult struct {
	ItemID string
	Values map[string]string
	Err    error
}

// Summary describes one run.
type Summary struct {
	RunID      string
	Deposit    string
	TempSheet  string
	FinalSheet string
	Resumed    bool
	Columns    []string
	Total      int // rows in the table
	Pending    int // rows this run had to process
	Processed  int
	Failed     int
	Lookups    int
	Flushes    int
	Location   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Syncer copies the stock of one deposit into a spreadsheet, item by item.
// The working sheet is the checkpoint: a rerun on the same day resumes from
// the first row left blank.
type Syncer struct {
	log  zerolog.Logger
	src  InventorySource
	gw   sheets.Gateway
	opts Options
}

func New(log zerolog.Logger, src InventorySource, gw sheets.Gateway, opts Options) *Syncer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SessionCheckEvery <= 0 {
		opts.SessionCheckEvery = DefaultSessionCheckEvery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Syncer{log: log, src: src, gw: gw, opts: opts}
}

// run is the state of one Run call.
type run struct {
	sum   *Summary
	log   zerolog.Logger
	table *sheets.Table
	cols  []string

	depositChecked bool
	// first row of the pending batch window
	window int
}

// Run performs one full synchronization of deposit.
func (s *Syncer) Run(ctx context.Context, deposit string) (*Summary, error) {
	if strings.TrimSpace(deposit) == "" {
		return nil, &colppy.ValidationError{Field: "deposit", Err: colppy.ErrMissingParameter}
	}
	now := s.opts.Now()
	r := &run{sum: &Summary{
		RunID:     uuid.NewString(),
		Deposit:   deposit,
		TempSheet: TempSheetName(deposit, now),
		Location:  s.gw.Location(),
		StartedAt: now,
	}}
	r.sum.FinalSheet = FinalSheetName(r.sum.TempSheet)
	r.log = s.log.With().Str("run_id", r.sum.RunID).Str("deposit", deposit).Logger()

	s.opts.Recorder.RunStarted(ctx, r.sum)
	err := s.run(ctx, r)
	r.sum.FinishedAt = s.opts.Now()
	s.opts.Recorder.RunFinished(ctx, r.sum, err)
	if err != nil {
		r.log.Error().Err(err).Int("processed", r.sum.Processed).Msg("sync aborted")
		return r.sum, err
	}
	r.log.Info().
		Int("processed", r.sum.Processed).
		Int("failed", r.sum.Failed).
		Int("flushes", r.sum.Flushes).
		Str("sheet", r.sum.FinalSheet).
		Str("location", r.sum.Location).
		Msg("sync done")
	return r.sum, nil
}

func (s *Syncer) run(ctx context.Context, r *run) error {
	if err := s.initTable(ctx, r); err != nil {
		return err
	}
	if err := s.resolveSheet(ctx, r); err != nil {
		return err
	}
	start, err := s.computeRange(ctx, r)
	if err != nil {
		return err
	}
	if err := s.loop(ctx, r, start); err != nil {
		return err
	}
	if err := s.finalWrite(ctx, r); err != nil {
		return err
	}
	return s.cleanup(ctx, r)
}

// initTable fetches the inventory once and builds the skeleton table.
func (s *Syncer) initTable(ctx context.Context, r *run) error {
	r.log.Info().Msg("fetching inventory")
	items, err := s.src.Inventory(ctx, s.opts.CompanyID)
	if err != nil {
		return fmt.Errorf("inventory: %w", err)
	}

	t := sheets.NewTable(indexColumn, Columns)
	dropped := 0
	for _, rec := range items {
		ok, err := s.opts.Filter.Match(rec)
		if err != nil {
			r.log.Warn().Err(err).Str("item_id", rec.String(indexColumn)).Msg("filter failed, item dropped")
		}
		if !ok {
			dropped++
			continue
		}
		values := make(map[string]string, len(Columns))
		for _, c := range Columns {
			values[c] = rec.String(c)
		}
		t.Append(rec.String(indexColumn), values)
	}
	r.table = t
	r.sum.Total = t.Len()
	r.log.Info().Int("items", t.Len()).Int("filtered_out", dropped).Str("filter", s.opts.Filter.String()).Msg("inventory table ready")
	return nil
}

// resolveSheet finds the working sheet or creates it.
func (s *Syncer) resolveSheet(ctx context.Context, r *run) error {
	name := r.sum.TempSheet
	found, err := s.gw.FindSheet(ctx, name)
	if err != nil {
		return fmt.Errorf("find sheet %s: %w", name, err)
	}
	r.sum.Resumed = found
	if found {
		r.log.Info().Str("sheet", name).Msg("working sheet found, resuming")
	} else {
		r.log.Info().Str("sheet", name).Msg("creating working sheet")
	}
	if err := s.gw.OpenSheet(ctx, name, true); err != nil {
		return fmt.Errorf("open sheet %s: %w", name, err)
	}
	return nil
}

// computeRange picks the columns to fill and the first row to process. On
// a fresh sheet it also writes the skeleton.
func (s *Syncer) computeRange(ctx context.Context, r *run) (int, error) {
	// decided on the fresh skeleton, before a resumed sheet replaces it
	r.cols = columnsToUpdate(r.table)
	r.sum.Columns = r.cols
	r.log.Info().Strs("columns", r.cols).Msg("columns to update")

	name := r.sum.TempSheet
	if !r.sum.Resumed {
		if err := s.gw.WriteTable(ctx, name, r.table, startCell, true); err != nil {
			return 0, fmt.Errorf("write skeleton: %w", err)
		}
		if err := s.gw.WriteCells(ctx, name, markerFrom, markerTo, []string{"Updating sheet...", ""}); err != nil {
			return 0, fmt.Errorf("write marker: %w", err)
		}
		r.sum.Pending = r.table.Len()
		return 0, nil
	}

	prev, err := s.gw.ReadTable(ctx, name, startCell.Row)
	if err != nil {
		return 0, fmt.Errorf("read working sheet: %w", err)
	}
	for _, c := range r.cols {
		if prev.ColumnIndex(c) < 0 {
			return 0, fmt.Errorf("working sheet %s has no %q column", name, c)
		}
	}
	r.table = prev
	r.sum.Total = prev.Len()

	start := prev.Len()
	for i := 0; i < prev.Len(); i++ {
		if prev.Get(i, r.cols[0]) == "" {
			start = i
			break
		}
	}
	r.sum.Pending = prev.Len() - start
	r.log.Info().Int("row", startCell.Row+1+start).Int("pending", r.sum.Pending).Msg("resuming from first incomplete row")
	return start, nil
}

func (s *Syncer) loop(ctx context.Context, r *run, start int) error {
	total := r.table.Len() - start
	r.window = start
	r.log.Info().Int("total", total).Msg("updating cells with deposit data")

	for i, n := start, 0; i < r.table.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, r, i, err)
		}
		if n > 0 && n%s.opts.SessionCheckEvery == 0 {
			if err := s.src.EnsureSession(ctx); err != nil {
				return s.abort(ctx, r, i, err)
			}
		}

		res, fatal := s.processItem(ctx, r, i)
		if fatal != nil {
			return s.abort(ctx, r, i, fatal)
		}
		n++
		r.sum.Processed++
		s.apply(ctx, r, i, res)

		if n%s.opts.BatchSize == 0 || n == total {
			if err := s.flush(ctx, r, i+1); err != nil {
				return err
			}
		}
		pct := float64(n) / float64(total) * 100
		r.log.Info().Int("processed", n).Int("total", total).Msgf("%.2f%% done", pct)
	}
	r.log.Info().Msg("all cells updated")
	return nil
}

// processItem does the single lookup of row i. Contained failures come back
// in the result; fatal ones as the error.
func (s *Syncer) processItem(ctx context.Context, r *run, i int) (ItemResult, error) {
	itemID := r.table.Index[i]
	res := ItemResult{ItemID: itemID}
	fail := func(err error) (ItemResult, error) {
		res.Err = &RowError{ItemID: itemID, Err: err}
		return res, nil
	}

	if itemID == "0" {
		return fail(ErrZeroItem)
	}
	stock, err := s.src.DepositsForItem(ctx, itemID, s.opts.CompanyID)
	r.sum.Lookups++
	if err != nil {
		var aerr *colppy.AuthenticationError
		if errors.As(err, &aerr) {
			return res, err
		}
		return fail(err)
	}

	if !r.depositChecked {
		r.depositChecked = true
		names := depositNames(stock)
		if !contains(names, r.sum.Deposit) {
			r.log.Warn().Strs("available", names).Msg("deposit not in the first item's stock")
			return fail(&UnknownDepositError{Deposit: r.sum.Deposit, Available: names})
		}
		r.log.Info().Strs("deposits", names).Msg("deposit name checked")
	}

	var row colppy.Record
	for _, rec := range stock {
		if rec.String(depositColumn) == r.sum.Deposit {
			row = rec
			break
		}
	}
	if row == nil {
		return fail(ErrDepositNotFound)
	}

	res.Values = make(map[string]string, len(r.cols))
	for _, c := range r.cols {
		v, ok := row[c]
		if !ok {
			return fail(fmt.Errorf("stock row has no %q", c))
		}
		res.Values[c] = colppy.CellString(v)
	}
	return res, nil
}

// apply writes a result into the table, "Error" in every column on failure.
func (s *Syncer) apply(ctx context.Context, r *run, i int, res ItemResult) {
	failed := res.Err != nil
	for _, c := range r.cols {
		v := errorMark
		if !failed {
			v = res.Values[c]
		}
		_ = r.table.Set(i, c, v)
	}
	if failed {
		r.sum.Failed++
		r.log.Warn().Err(res.Err).Str("item_id", res.ItemID).Msg("item marked as error")
		s.opts.Recorder.ItemFailed(ctx, r.sum.RunID, res.ItemID, res.Err)
	}
	s.opts.Metrics.ItemProcessed(ctx, r.sum.Deposit, failed)
}

// flush writes rows [window, upto) of every target column, then moves the
// window one batch forward.
func (s *Syncer) flush(ctx context.Context, r *run, upto int) error {
	if upto <= r.window {
		return nil
	}
	first := startCell.Row + 1 + r.window
	last := startCell.Row + upto // never past startRow + total
	r.log.Info().Int("from_row", first).Int("to_row", last).Msg("uploading batch")
	for _, c := range r.cols {
		col := sheetColumn(r.table, c)
		from := sheets.Cell{Row: first, Col: col}
		to := sheets.Cell{Row: last, Col: col}
		if err := s.gw.WriteCells(ctx, r.sum.TempSheet, from, to, r.table.Column(c, r.window, upto)); err != nil {
			return fmt.Errorf("flush %s %s:%s: %w", c, from, to, err)
		}
	}
	r.window += s.opts.BatchSize
	r.sum.Flushes++
	s.opts.Metrics.BatchFlushed(ctx, r.sum.Deposit)
	return nil
}

// abort saves the rows already processed and returns err.
func (s *Syncer) abort(ctx context.Context, r *run, i int, err error) error {
	if ferr := s.flush(context.WithoutCancel(ctx), r, i); ferr != nil {
		r.log.Error().Err(ferr).Msg("could not save processed rows")
	}
	return err
}

func (s *Syncer) finalWrite(ctx context.Context, r *run) error {
	name := r.sum.FinalSheet
	r.log.Info().Str("sheet", name).Msg("uploading final data")
	if err := s.gw.WriteTable(ctx, name, r.table.Renamed(DisplayNames), startCell, false); err != nil {
		return fmt.Errorf("write final sheet: %w", err)
	}
	stamp := s.opts.Now().Format(stampLayout)
	if err := s.gw.WriteCells(ctx, name, markerFrom, markerTo, []string{"Updated on:", stamp}); err != nil {
		return fmt.Errorf("stamp final sheet: %w", err)
	}
	r.log.Info().Str("location", r.sum.Location).Msg("data set")
	return nil
}

// cleanup drops the working sheet once the final one exists.
func (s *Syncer) cleanup(ctx context.Context, r *run) error {
	ok, err := s.gw.FindSheet(ctx, r.sum.FinalSheet)
	if err != nil {
		return fmt.Errorf("find final sheet: %w", err)
	}
	if !ok {
		return nil
	}
	if err := s.gw.DeleteSheet(ctx, r.sum.TempSheet); err != nil {
		return fmt.Errorf("delete working sheet: %w", err)
	}
	r.log.Info().Str("sheet", r.sum.TempSheet).Msg("working sheet deleted")
	return nil
}

func depositNames(stock []colppy.Record) []string {
	out := make([]string, 0, len(stock))
	for _, rec := range stock {
		out = append(out, rec.String(depositColumn))
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(context.Context, *Summary) {}
func (nopRecorder) ItemFailed(context.Context, string, string, error) {}
func (nopRecorder) RunFinished(context.Context, *Summary, error) {}

type nopMetrics struct{}

func (nopMetrics) ItemProcessed(context.Context, string, bool) {}
func (nopMetrics) BatchFlushed(context.Context, string) {}
