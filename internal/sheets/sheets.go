// internal/sheets/sheets.go
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Cell is a 1-based (row, column) coordinate.
type Cell struct {
	Row int
	Col int
}

// A1 returns the cell name, e.g. Cell{3, 1} -> "A3".
func (c Cell) A1() (string, error) {
	return excelize.CoordinatesToCellName(c.Col, c.Row)
}

func (c Cell) String() string {
	name, err := c.A1()
	if err != nil {
		return fmt.Sprintf("R%dC%d", c.Row, c.Col)
	}
	return name
}

var ErrSheetNotFound = errors.New("sheet not found")

// Gateway is a spreadsheet store: named sheets of string cells.
type Gateway interface {
	FindSheet(ctx context.Context, name string) (bool, error)
	// OpenSheet fails with ErrSheetNotFound when the sheet is missing and
	// create is false.
	OpenSheet(ctx context.Context, name string, create bool) error
	// ReadTable reads the header at startRow and every row below it. The
	// first column is the index.
	ReadTable(ctx context.Context, sheet string, startRow int) (*Table, error)
	// WriteTable writes the header at start and the rows below it, creating
	// the sheet when missing. Cells outside the table are left untouched.
	WriteTable(ctx context.Context, sheet string, t *Table, start Cell, includeIndex bool) error
	// WriteCells fills the from:to rectangle row-major. len(values) must
	// match the rectangle size.
	WriteCells(ctx context.Context, sheet string, from, to Cell, values []string) error
	DeleteSheet(ctx context.Context, name string) error
	// Location is a human readable address of the store (path or URL).
	Location() string
}

// Factory builds a backend from its raw "stores.<name>" config.
type Factory func(ctx context.Context, log zerolog.Logger, raw json.RawMessage) (Gateway, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered backends, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open builds the named backend.
func Open(ctx context.Context, log zerolog.Logger, name string, raw json.RawMessage) (Gateway, error) {
	f, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown sheet store %q (available: %v)", name, Names())
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	g, err := f(ctx, log.With().Str("store", name).Logger(), raw)
	if err != nil {
		return nil, fmt.Errorf("sheet store %s: %w", name, err)
	}
	return g, nil
}

// CheckRange validates a from:to rectangle against the number of values.
func CheckRange(from, to Cell, values []string) (rows, cols int, err error) {
	if from.Row < 1 || from.Col < 1 || to.Row < from.Row || to.Col < from.Col {
		return 0, 0, fmt.Errorf("invalid range %s:%s", from, to)
	}
	rows = to.Row - from.Row + 1
	cols = to.Col - from.Col + 1
	if rows*cols != len(values) {
		return 0, 0, fmt.Errorf("range %s:%s holds %d cells, got %d values", from, to, rows*cols, len(values))
	}
	return rows, cols, nil
}
