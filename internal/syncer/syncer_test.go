package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)

const temp = "temp_Local_01-02-2024"

// fakeSource serves a fixed inventory and one stock list per item.
type fakeSource struct {
	mu        sync.Mutex
	items     []colppy.Record
	stock     map[string][]colppy.Record
	fail      map[string]error
	inventory int
	lookups   []string
	sessions  int
	// cancel is called after this many lookups when set
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeSource) Inventory(ctx context.Context, companyID string) ([]colppy.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventory++
	return f.items, nil
}

func (f *fakeSource) DepositsForItem(ctx context.Context, itemID, companyID string) ([]colppy.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, itemID)
	if f.cancel != nil && len(f.lookups) == f.cancelAfter {
		f.cancel()
	}
	if err := f.fail[itemID]; err != nil {
		return nil, err
	}
	if s, ok := f.stock[itemID]; ok {
		return s, nil
	}
	return []colppy.Record{
		{"nombre": "Local", "disponibilidad": json.Number(itemID)},
		{"nombre": "Otro", "disponibilidad": "1"},
	}, nil
}

func (f *fakeSource) EnsureSession(ctx context.Context) error {
	f.sessions++
	return nil
}

func inventory(ids ...int) []colppy.Record {
	out := make([]colppy.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, colppy.Record{
			"idItem":         json.Number(strconv.Itoa(id)),
			"nombre":         fmt.Sprintf("Item %d", id),
			"codigo":         fmt.Sprintf("C-%d", id),
			"descripcion":    "desc",
			"tipoItem":       "P",
			"unidadMedida":   "u",
			"precioVenta":    json.Number("12.50"),
			"costoCalculado": "8",
		})
	}
	return out
}

func seq(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

// countingGateway records the calls made on a memory gateway.
type countingGateway struct {
	*sheets.Memory
	writeTables []string
	writeCells  []string
	deletes     []string
}

func (c *countingGateway) WriteTable(ctx context.Context, sheet string, t *sheets.Table, start sheets.Cell, idx bool) error {
	c.writeTables = append(c.writeTables, sheet)
	return c.Memory.WriteTable(ctx, sheet, t, start, idx)
}

func (c *countingGateway) WriteCells(ctx context.Context, sheet string, from, to sheets.Cell, values []string) error {
	c.writeCells = append(c.writeCells, fmt.Sprintf("%s!%s:%s", sheet, from, to))
	return c.Memory.WriteCells(ctx, sheet, from, to, values)
}

func (c *countingGateway) DeleteSheet(ctx context.Context, name string) error {
	c.deletes = append(c.deletes, name)
	return c.Memory.DeleteSheet(ctx, name)
}

// flushes are the batch writes on the working sheet, markers excluded.
func (c *countingGateway) flushes() []string {
	var out []string
	for _, w := range c.writeCells {
		if !strings.HasSuffix(w, "!A1:B1") {
			out = append(out, w)
		}
	}
	return out
}

type recorder struct {
	started  int
	failed   []string
	finished error
	done     bool
}

func (r *recorder) RunStarted(ctx context.Context, s *Summary) { r.started++ }
func (r *recorder) ItemFailed(ctx context.Context, runID, itemID string, err error) {
	r.failed = append(r.failed, itemID)
}
func (r *recorder) RunFinished(ctx context.Context, s *Summary, err error) {
	r.done = true
	r.finished = err
}

func newSyncer(src InventorySource, gw sheets.Gateway, batch int, rec Recorder) *Syncer {
	return New(zerolog.Nop(), src, gw, Options{
		BatchSize: batch,
		Now:       func() time.Time { return day },
		Recorder:  rec,
	})
}

func TestRunEndToEnd(t *testing.T) {
	src := &fakeSource{items: inventory(seq(100, 11)...)}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	rec := &recorder{}

	sum, err := newSyncer(src, gw, 100, rec).Run(context.Background(), "Local")
	require.NoError(t, err)

	assert.Equal(t, 1, src.inventory)
	assert.Len(t, src.lookups, 11)
	assert.Equal(t, []string{temp + "!I4:I14"}, gw.flushes())
	assert.Equal(t, []string{temp, "Local_01-02-2024"}, gw.writeTables)
	assert.Equal(t, []string{temp}, gw.deletes)
	assert.Equal(t, []string{"Local_01-02-2024"}, gw.Sheets())

	assert.Equal(t, 11, sum.Processed)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 1, sum.Flushes)
	assert.False(t, sum.Resumed)
	assert.Equal(t, []string{"disponibilidad"}, sum.Columns)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, rec.started)
	assert.True(t, rec.done)
	assert.NoError(t, rec.finished)

	final := "Local_01-02-2024"
	assert.Equal(t, "Updated on:", gw.Value(final, sheets.Cell{Row: 1, Col: 1}))
	assert.Equal(t, "2024-02-01 10:30:00", gw.Value(final, sheets.Cell{Row: 1, Col: 2}))
	// no index column on the final sheet
	assert.Equal(t, "Nombre", gw.Value(final, sheets.Cell{Row: 3, Col: 1}))
	assert.Equal(t, "Disponible", gw.Value(final, sheets.Cell{Row: 3, Col: 8}))
	assert.Equal(t, "Item 100", gw.Value(final, sheets.Cell{Row: 4, Col: 1}))
	assert.Equal(t, "100", gw.Value(final, sheets.Cell{Row: 4, Col: 8}))
	assert.Equal(t, "110", gw.Value(final, sheets.Cell{Row: 14, Col: 8}))
}

func TestRunFlushCount(t *testing.T) {
	cases := []struct {
		items, batch int
		want         []string
	}{
		{items: 5, batch: 2, want: []string{temp + "!I4:I5", temp + "!I6:I7", temp + "!I8:I8"}},
		{items: 4, batch: 2, want: []string{temp + "!I4:I5", temp + "!I6:I7"}},
		{items: 3, batch: 10, want: []string{temp + "!I4:I6"}},
		{items: 1, batch: 1, want: []string{temp + "!I4:I4"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_by_%d", tc.items, tc.batch), func(t *testing.T) {
			src := &fakeSource{items: inventory(seq(1, tc.items)...)}
			gw := &countingGateway{Memory: sheets.NewMemory()}
			sum, err := newSyncer(src, gw, tc.batch, nil).Run(context.Background(), "Local")
			require.NoError(t, err)
			assert.Equal(t, tc.want, gw.flushes())
			assert.Equal(t, len(tc.want), sum.Flushes)
		})
	}
}

func TestRunResumes(t *testing.T) {
	items := inventory(seq(1, 10)...)
	gw := &countingGateway{Memory: sheets.NewMemory()}

	// a previous run of the same day filled the first 4 rows
	skeleton := sheets.NewTable(indexColumn, Columns)
	for i, rec := range items {
		values := map[string]string{}
		for _, c := range Columns {
			values[c] = rec.String(c)
		}
		if i < 4 {
			values["disponibilidad"] = "old"
		}
		skeleton.Append(rec.String(indexColumn), values)
	}
	require.NoError(t, gw.Memory.WriteTable(context.Background(), temp, skeleton, startCell, true))

	src := &fakeSource{items: items}
	sum, err := newSyncer(src, gw, 100, nil).Run(context.Background(), "Local")
	require.NoError(t, err)

	assert.True(t, sum.Resumed)
	assert.Equal(t, 6, sum.Pending)
	assert.Equal(t, []string{"5", "6", "7", "8", "9", "10"}, src.lookups)
	assert.Equal(t, []string{temp + "!I8:I13"}, gw.flushes())

	final := "Local_01-02-2024"
	assert.Equal(t, "old", gw.Value(final, sheets.Cell{Row: 4, Col: 8}))
	assert.Equal(t, "5", gw.Value(final, sheets.Cell{Row: 8, Col: 8}))
	assert.Equal(t, []string{final}, gw.Sheets())
}

func TestRunResumeCompleteSheet(t *testing.T) {
	items := inventory(1, 2)
	gw := &countingGateway{Memory: sheets.NewMemory()}
	done := sheets.NewTable(indexColumn, Columns)
	for _, rec := range items {
		values := map[string]string{"disponibilidad": "3"}
		for _, c := range Columns[:7] {
			values[c] = rec.String(c)
		}
		done.Append(rec.String(indexColumn), values)
	}
	require.NoError(t, gw.Memory.WriteTable(context.Background(), temp, done, startCell, true))

	src := &fakeSource{items: items}
	sum, err := newSyncer(src, gw, 100, nil).Run(context.Background(), "Local")
	require.NoError(t, err)
	assert.Empty(t, src.lookups)
	assert.Empty(t, gw.flushes())
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, []string{"Local_01-02-2024"}, gw.Sheets())
}

func TestRunMarksRowErrors(t *testing.T) {
	src := &fakeSource{
		items: inventory(0, 1, 2, 3),
		stock: map[string][]colppy.Record{
			"2": {{"nombre": "Otro", "disponibilidad": "4"}},
		},
		fail: map[string]error{"3": &colppy.TransportError{StatusCode: 502}},
	}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	rec := &recorder{}
	sum, err := newSyncer(src, gw, 100, rec).Run(context.Background(), "Local")
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, []string{"0", "2", "3"}, rec.failed)
	assert.Equal(t, []string{"1", "2", "3"}, src.lookups, "item 0 is never looked up")

	final := "Local_01-02-2024"
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 4, Col: 8}))
	assert.Equal(t, "1", gw.Value(final, sheets.Cell{Row: 5, Col: 8}))
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 6, Col: 8}))
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 7, Col: 8}))
}

func TestRunErrorAcrossAllColumns(t *testing.T) {
	items := inventory(1, 2)
	delete(items[0], "codigo")
	delete(items[1], "codigo")
	src := &fakeSource{
		items: items,
		stock: map[string][]colppy.Record{
			"1": {{"nombre": "Local", "codigo": "X", "disponibilidad": "2"}},
			// no codigo in the stock row
			"2": {{"nombre": "Local", "disponibilidad": "2"}},
		},
	}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	sum, err := newSyncer(src, gw, 100, nil).Run(context.Background(), "Local")
	require.NoError(t, err)

	assert.Equal(t, []string{"codigo", "disponibilidad"}, sum.Columns)
	assert.ElementsMatch(t, []string{temp + "!C4:C5", temp + "!I4:I5"}, gw.flushes())

	final := "Local_01-02-2024"
	assert.Equal(t, "X", gw.Value(final, sheets.Cell{Row: 4, Col: 2}))
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 5, Col: 2}))
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 5, Col: 8}))
}

func TestRunUnknownDeposit(t *testing.T) {
	src := &fakeSource{items: inventory(1, 2, 3)}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	rec := &recorder{}

	sum, err := newSyncer(src, gw, 100, rec).Run(context.Background(), "Central")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, src.lookups)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, []string{"1", "2", "3"}, rec.failed)
	assert.NoError(t, rec.finished)

	final := "Central_01-02-2024"
	assert.Equal(t, []string{final}, gw.Sheets(), "working sheet removed after the final write")
	assert.Equal(t, []string{"temp_Central_01-02-2024"}, gw.deletes)
	for row := 4; row <= 6; row++ {
		assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: row, Col: 8}))
	}
}

func TestRunFirstItemMissingDeposit(t *testing.T) {
	src := &fakeSource{
		items: inventory(1, 2, 3),
		stock: map[string][]colppy.Record{
			"1": {{"nombre": "Otro", "disponibilidad": "9"}},
		},
	}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	rec := &recorder{}

	sum, err := newSyncer(src, gw, 100, rec).Run(context.Background(), "Local")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, src.lookups)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"1"}, rec.failed)

	final := "Local_01-02-2024"
	assert.Equal(t, []string{final}, gw.Sheets())
	assert.Equal(t, errorMark, gw.Value(final, sheets.Cell{Row: 4, Col: 8}))
	assert.Equal(t, "2", gw.Value(final, sheets.Cell{Row: 5, Col: 8}))
	assert.Equal(t, "3", gw.Value(final, sheets.Cell{Row: 6, Col: 8}))
}

func TestProcessItemReportsAvailableDeposits(t *testing.T) {
	src := &fakeSource{items: inventory(1, 2)}
	s := newSyncer(src, sheets.NewMemory(), 100, nil)
	r := &run{
		log:   zerolog.Nop(),
		table: sheets.NewTable("idItem", []string{"disponibilidad"}),
		cols:  []string{"disponibilidad"},
		sum:   &Summary{Deposit: "Central"},
	}
	r.table.Append("1", nil)
	r.table.Append("2", nil)

	res, err := s.processItem(context.Background(), r, 0)
	require.NoError(t, err)
	var uerr *UnknownDepositError
	require.True(t, errors.As(res.Err, &uerr))
	assert.Equal(t, []string{"Local", "Otro"}, uerr.Available)
	assert.Contains(t, res.Err.Error(), "Local, Otro")
	assert.True(t, errors.Is(res.Err, ErrDepositNotFound))

	res, err = s.processItem(context.Background(), r, 1)
	require.NoError(t, err)
	assert.True(t, errors.Is(res.Err, ErrDepositNotFound))
	assert.False(t, errors.As(res.Err, &uerr), "available deposits are reported once")
}

func TestRunAuthAbortSavesProgress(t *testing.T) {
	src := &fakeSource{
		items: inventory(seq(1, 6)...),
		fail:  map[string]error{"4": &colppy.AuthenticationError{Err: errors.New("bad password")}},
	}
	gw := &countingGateway{Memory: sheets.NewMemory()}

	sum, err := newSyncer(src, gw, 100, nil).Run(context.Background(), "Local")
	var aerr *colppy.AuthenticationError
	require.True(t, errors.As(err, &aerr))

	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, []string{temp + "!I4:I6"}, gw.flushes())
	assert.Equal(t, []string{temp}, gw.Sheets())
	assert.Equal(t, "3", gw.Value(temp, sheets.Cell{Row: 6, Col: 9}))
	assert.Equal(t, "", gw.Value(temp, sheets.Cell{Row: 7, Col: 9}))

	// the next run picks up at item 4
	src.fail = nil
	src.lookups = nil
	sum, err = newSyncer(src, gw, 100, nil).Run(context.Background(), "Local")
	require.NoError(t, err)
	assert.True(t, sum.Resumed)
	assert.Equal(t, []string{"4", "5", "6"}, src.lookups)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{items: inventory(seq(1, 5)...), cancelAfter: 2, cancel: cancel}
	gw := &countingGateway{Memory: sheets.NewMemory()}

	sum, err := newSyncer(src, gw, 100, nil).Run(ctx, "Local")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, []string{temp + "!I4:I5"}, gw.flushes())
}

func TestRunChecksSession(t *testing.T) {
	src := &fakeSource{items: inventory(seq(1, 7)...)}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	s := New(zerolog.Nop(), src, gw, Options{SessionCheckEvery: 3, Now: func() time.Time { return day }})

	_, err := s.Run(context.Background(), "Local")
	require.NoError(t, err)
	assert.Equal(t, 2, src.sessions)
}

func TestRunFilter(t *testing.T) {
	items := inventory(1, 2, 3)
	items[1]["tipoItem"] = "S"
	f, err := NewFilter(`tipoItem == "P"`)
	require.NoError(t, err)

	src := &fakeSource{items: items}
	gw := &countingGateway{Memory: sheets.NewMemory()}
	s := New(zerolog.Nop(), src, gw, Options{Filter: f, Now: func() time.Time { return day }})

	sum, err := s.Run(context.Background(), "Local")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, []string{"1", "3"}, src.lookups)
}

func TestRunEmptyDeposit(t *testing.T) {
	_, err := newSyncer(&fakeSource{}, sheets.NewMemory(), 1, nil).Run(context.Background(), " ")
	assert.True(t, errors.Is(err, colppy.ErrMissingParameter))
}

func TestSheetNames(t *testing.T) {
	assert.Equal(t, temp, TempSheetName("Local", day))
	assert.Equal(t, "Local_01-02-2024", FinalSheetName(temp))
	assert.Equal(t, "temp_x", FinalSheetName("temp_temp_x"))
}

func TestColumnsToUpdate(t *testing.T) {
	tbl := sheets.NewTable(indexColumn, Columns)
	tbl.Append("1", map[string]string{"nombre": "a", "codigo": "b"})
	got := columnsToUpdate(tbl)
	assert.Equal(t, []string{"descripcion", "tipoItem", "unidadMedida", "precioVenta", "costoCalculado", "disponibilidad"}, got)

	full := map[string]string{}
	for _, c := range Columns {
		full[c] = "x"
	}
	tbl = sheets.NewTable(indexColumn, Columns)
	tbl.Append("1", full)
	assert.Equal(t, []string{"disponibilidad"}, columnsToUpdate(tbl))
	assert.Equal(t, 9, sheetColumn(tbl, "disponibilidad"))
	assert.Equal(t, 2, sheetColumn(tbl, "nombre"))
}
