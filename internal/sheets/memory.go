// internal/sheets/memory.go
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Memory keeps sheets in process. Used for dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	sheets map[string][][]string
	order  []string
}

func NewMemory() *Memory {
	return &Memory{sheets: map[string][][]string{}}
}

func (m *Memory) FindSheet(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sheets[name]
	return ok, nil
}

func (m *Memory) OpenSheet(ctx context.Context, name string, create bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; ok {
		return nil
	}
	if !create {
		return fmt.Errorf("%s: %w", name, ErrSheetNotFound)
	}
	m.addLocked(name)
	return nil
}

func (m *Memory) ReadTable(ctx context.Context, sheet string, startRow int) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sheet, ErrSheetNotFound)
	}
	if startRow < 1 {
		startRow = 1
	}
	if startRow > len(grid) {
		return TableFromGrid(nil), nil
	}
	out := make([][]string, 0, len(grid)-startRow+1)
	for _, line := range grid[startRow-1:] {
		out = append(out, append([]string(nil), line...))
	}
	return TableFromGrid(out), nil
}

func (m *Memory) WriteTable(ctx context.Context, sheet string, t *Table, start Cell, includeIndex bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.addLocked(sheet)
	}
	for i, line := range t.Grid(includeIndex) {
		for j, v := range line {
			m.setLocked(sheet, Cell{Row: start.Row + i, Col: start.Col + j}, v)
		}
	}
	return nil
}

func (m *Memory) WriteCells(ctx context.Context, sheet string, from, to Cell, values []string) error {
	_, cols, err := CheckRange(from, to, values)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		return fmt.Errorf("%s: %w", sheet, ErrSheetNotFound)
	}
	for k, v := range values {
		m.setLocked(sheet, Cell{Row: from.Row + k/cols, Col: from.Col + k%cols}, v)
	}
	return nil
}

func (m *Memory) DeleteSheet(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrSheetNotFound)
	}
	delete(m.sheets, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Location() string { return "memory" }

// Sheets lists sheet names in creation order.
func (m *Memory) Sheets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Value returns one cell, "" when unset.
func (m *Memory) Value(sheet string, c Cell) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	grid := m.sheets[sheet]
	if c.Row < 1 || c.Row > len(grid) {
		return ""
	}
	line := grid[c.Row-1]
	if c.Col < 1 || c.Col > len(line) {
		return ""
	}
	return line[c.Col-1]
}

func (m *Memory) addLocked(name string) {
	m.sheets[name] = nil
	m.order = append(m.order, name)
}

func (m *Memory) setLocked(sheet string, c Cell, v string) {
	grid := m.sheets[sheet]
	for len(grid) < c.Row {
		grid = append(grid, nil)
	}
	line := grid[c.Row-1]
	for len(line) < c.Col {
		line = append(line, "")
	}
	line[c.Col-1] = v
	grid[c.Row-1] = line
	m.sheets[sheet] = grid
}

func init() {
	Register("memory", func(ctx context.Context, log zerolog.Logger, raw json.RawMessage) (Gateway, error) {
		return NewMemory(), nil
	})
}
