// internal/sheets/gsheets/gsheets.go
package gsheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	gs "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID   string `json:"spreadsheet_id"`
	CredentialsFile string `json:"credentials_file"` // service account JSON
	// rightmost column read by ReadTable
	LastColumn string `json:"last_column,omitempty"`
}

// Spreadsheet is one Google spreadsheet reached through the Sheets v4 API.
type Spreadsheet struct {
	log     zerolog.Logger
	svc     *gs.Service
	id      string
	lastCol string
}

func New(ctx context.Context, log zerolog.Logger, cfg Config, opts ...option.ClientOption) (*Spreadsheet, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("gsheets: spreadsheet_id is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := gs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gsheets: %w", err)
	}
	lastCol := cfg.LastColumn
	if lastCol == "" {
		lastCol = "Z"
	}
	return &Spreadsheet{log: log, svc: svc, id: cfg.SpreadsheetID, lastCol: lastCol}, nil
}

func (s *Spreadsheet) FindSheet(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.sheetID(ctx, name)
	return ok, err
}

func (s *Spreadsheet) OpenSheet(ctx context.Context, name string, create bool) error {
	_, ok, err := s.sheetID(ctx, name)
	if err != nil || ok {
		return err
	}
	if !create {
		return fmt.Errorf("%s: %w", name, sheets.ErrSheetNotFound)
	}
	return s.addSheet(ctx, name)
}

func (s *Spreadsheet) ReadTable(ctx context.Context, sheet string, startRow int) (*sheets.Table, error) {
	if startRow < 1 {
		startRow = 1
	}
	rng := fmt.Sprintf("%s!A%d:%s", quote(sheet), startRow, s.lastCol)
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	grid := make([][]string, len(resp.Values))
	for i, line := range resp.Values {
		grid[i] = make([]string, len(line))
		for j, v := range line {
			grid[i][j] = fmt.Sprint(v)
		}
	}
	return sheets.TableFromGrid(grid), nil
}

func (s *Spreadsheet) WriteTable(ctx context.Context, sheet string, t *sheets.Table, start sheets.Cell, includeIndex bool) error {
	if err := s.OpenSheet(ctx, sheet, true); err != nil {
		return err
	}
	grid := t.Grid(includeIndex)
	width := 0
	for _, line := range grid {
		if len(line) > width {
			width = len(line)
		}
	}
	if width == 0 {
		return nil
	}
	end := sheets.Cell{Row: start.Row + len(grid) - 1, Col: start.Col + width - 1}
	values := make([][]interface{}, len(grid))
	for i, line := range grid {
		values[i] = make([]interface{}, width)
		for j := range values[i] {
			if j < len(line) {
				values[i][j] = line[j]
			} else {
				values[i][j] = ""
			}
		}
	}
	return s.update(ctx, sheet, start, end, values)
}

func (s *Spreadsheet) WriteCells(ctx context.Context, sheet string, from, to sheets.Cell, values []string) error {
	rows, cols, err := sheets.CheckRange(from, to, values)
	if err != nil {
		return err
	}
	grid := make([][]interface{}, rows)
	for i := range grid {
		grid[i] = make([]interface{}, cols)
		for j := range grid[i] {
			grid[i][j] = values[i*cols+j]
		}
	}
	return s.update(ctx, sheet, from, to, grid)
}

func (s *Spreadsheet) DeleteSheet(ctx context.Context, name string) error {
	id, ok, err := s.sheetID(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, sheets.ErrSheetNotFound)
	}
	req := &gs.BatchUpdateSpreadsheetRequest{
		// sheet 0 is a valid id, force it past omitempty
		Requests: []*gs.Request{{DeleteSheet: &gs.DeleteSheetRequest{SheetId: id, ForceSendFields: []string{"SheetId"}}}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete sheet %q: %w", name, err)
	}
	s.log.Debug().Str("sheet", name).Msg("sheet deleted")
	return nil
}

func (s *Spreadsheet) Location() string {
	return "https://docs.google.com/spreadsheets/d/" + s.id
}

func (s *Spreadsheet) sheetID(ctx context.Context, name string) (int64, bool, error) {
	ss, err := s.svc.Spreadsheets.Get(s.id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("get spreadsheet %s: %w", s.id, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return sh.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (s *Spreadsheet) addSheet(ctx context.Context, name string) error {
	req := &gs.BatchUpdateSpreadsheetRequest{
		Requests: []*gs.Request{{AddSheet: &gs.AddSheetRequest{Properties: &gs.SheetProperties{Title: name}}}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	s.log.Debug().Str("sheet", name).Msg("sheet created")
	return nil
}

func (s *Spreadsheet) update(ctx context.Context, sheet string, from, to sheets.Cell, values [][]interface{}) error {
	a, err := from.A1()
	if err != nil {
		return err
	}
	b, err := to.A1()
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!%s:%s", quote(sheet), a, b)
	vr := &gs.ValueRange{Range: rng, MajorDimension: "ROWS", Values: values}
	if _, err := s.svc.Spreadsheets.Values.Update(s.id, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// quote wraps a sheet title for A1 notation.
func quote(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func factory(ctx context.Context, log zerolog.Logger, raw json.RawMessage) (sheets.Gateway, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return New(ctx, log, cfg)
}

func init() {
	sheets.Register("gsheets", factory)
}
