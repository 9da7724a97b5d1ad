// internal/sheets/xlsx/xlsx.go
package xlsx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type Config struct {
	Path string `json:"path"` // workbook, created when missing
}

// Workbook is a local .xlsx file. Every mutation is saved right away so the
// working sheet survives an interrupted run.
type Workbook struct {
	log  zerolog.Logger
	path string

	mu   sync.Mutex
	file *excelize.File
	// placeholder sheet of a freshly created workbook, dropped once a real
	// sheet exists
	placeholder string
}

// Open loads path or starts a new workbook there.
func Open(log zerolog.Logger, path string) (*Workbook, error) {
	if path == "" {
		return nil, errors.New("xlsx: path is required")
	}
	w := &Workbook{log: log, path: path}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		w.file = f
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
		w.file = excelize.NewFile()
		w.placeholder = w.file.GetSheetName(0)
		log.Info().Str("path", path).Msg("new workbook")
	default:
		return nil, fmt.Errorf("xlsx: open %s: %w", path, err)
	}
	return w, nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) FindSheet(ctx context.Context, name string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasLocked(name), nil
}

func (w *Workbook) OpenSheet(ctx context.Context, name string, create bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hasLocked(name) {
		return nil
	}
	if !create {
		return fmt.Errorf("%s: %w", name, sheets.ErrSheetNotFound)
	}
	if err := w.addLocked(name); err != nil {
		return err
	}
	return w.saveLocked()
}

func (w *Workbook) ReadTable(ctx context.Context, sheet string, startRow int) (*sheets.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLocked(sheet) {
		return nil, fmt.Errorf("%s: %w", sheet, sheets.ErrSheetNotFound)
	}
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows from sheet %q: %w", sheet, err)
	}
	if startRow < 1 {
		startRow = 1
	}
	if startRow > len(rows) {
		return sheets.TableFromGrid(nil), nil
	}
	return sheets.TableFromGrid(rows[startRow-1:]), nil
}

func (w *Workbook) WriteTable(ctx context.Context, sheet string, t *sheets.Table, start sheets.Cell, includeIndex bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLocked(sheet) {
		if err := w.addLocked(sheet); err != nil {
			return err
		}
	}
	for i, line := range t.Grid(includeIndex) {
		cell, err := excelize.CoordinatesToCellName(start.Col, start.Row+i)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(line))
		for j, v := range line {
			row[j] = v
		}
		if err := w.file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %q: %w", start.Row+i, sheet, err)
		}
	}
	return w.saveLocked()
}

func (w *Workbook) WriteCells(ctx context.Context, sheet string, from, to sheets.Cell, values []string) error {
	_, cols, err := sheets.CheckRange(from, to, values)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLocked(sheet) {
		return fmt.Errorf("%s: %w", sheet, sheets.ErrSheetNotFound)
	}
	for k, v := range values {
		cell, err := excelize.CoordinatesToCellName(from.Col+k%cols, from.Row+k/cols)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return w.saveLocked()
}

func (w *Workbook) DeleteSheet(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasLocked(name) {
		return fmt.Errorf("%s: %w", name, sheets.ErrSheetNotFound)
	}
	if err := w.file.DeleteSheet(name); err != nil {
		return fmt.Errorf("delete sheet %q: %w", name, err)
	}
	return w.saveLocked()
}

func (w *Workbook) Location() string { return w.path }

// Sheets lists the workbook's sheet names.
func (w *Workbook) Sheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.GetSheetList()
}

func (w *Workbook) hasLocked(name string) bool {
	if name == w.placeholder {
		return false
	}
	idx, err := w.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (w *Workbook) addLocked(name string) error {
	idx, err := w.file.NewSheet(name)
	if err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	if w.placeholder != "" {
		w.file.SetActiveSheet(idx)
		if err := w.file.DeleteSheet(w.placeholder); err != nil {
			return fmt.Errorf("drop placeholder sheet: %w", err)
		}
		w.placeholder = ""
	}
	w.log.Debug().Str("sheet", name).Msg("sheet created")
	return nil
}

func (w *Workbook) saveLocked() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save %s: %w", w.path, err)
	}
	return nil
}

func factory(ctx context.Context, log zerolog.Logger, raw json.RawMessage) (sheets.Gateway, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return Open(log, cfg.Path)
}

func init() {
	sheets.Register("xlsx", factory)
}
