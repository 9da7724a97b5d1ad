// internal/sheets/table.go
package sheets

import "fmt"

// Table is an indexed grid of strings. Rows[i][j] is the value of Columns[j]
// for the row keyed Index[i].
type Table struct {
	IndexName string
	Columns   []string
	Index     []string
	Rows      [][]string
}

func NewTable(indexName string, columns []string) *Table {
	return &Table{IndexName: indexName, Columns: append([]string(nil), columns...)}
}

// Append adds a row. values are matched to Columns by name; unknown keys
// are ignored and missing ones stay empty.
func (t *Table) Append(index string, values map[string]string) {
	row := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = values[c]
	}
	t.Index = append(t.Index, index)
	t.Rows = append(t.Rows, row)
}

func (t *Table) Len() int { return len(t.Index) }

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for j, c := range t.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

func (t *Table) Get(row int, col string) string {
	j := t.ColumnIndex(col)
	if j < 0 || row < 0 || row >= len(t.Rows) || j >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][j]
}

func (t *Table) Set(row int, col string, v string) error {
	j := t.ColumnIndex(col)
	if j < 0 {
		return fmt.Errorf("no column %q", col)
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row %d out of range (%d rows)", row, len(t.Rows))
	}
	t.Rows[row][j] = v
	return nil
}

// EmptyColumns lists, in column order, the columns blank in every row.
func (t *Table) EmptyColumns() []string {
	var out []string
	for j, c := range t.Columns {
		empty := true
		for _, r := range t.Rows {
			if j < len(r) && r[j] != "" {
				empty = false
				break
			}
		}
		if empty {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the values of col for rows [from, to).
func (t *Table) Column(col string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(t.Rows) {
		to = len(t.Rows)
	}
	if from >= to {
		return nil
	}
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, t.Get(i, col))
	}
	return out
}

// Renamed returns a copy with headers replaced through names. Headers
// without an entry are kept.
func (t *Table) Renamed(names map[string]string) *Table {
	rename := func(s string) string {
		if n, ok := names[s]; ok {
			return n
		}
		return s
	}
	out := &Table{
		IndexName: rename(t.IndexName),
		Columns:   make([]string, len(t.Columns)),
		Index:     append([]string(nil), t.Index...),
		Rows:      make([][]string, len(t.Rows)),
	}
	for j, c := range t.Columns {
		out.Columns[j] = rename(c)
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Grid renders the table as rows of cells, header first.
func (t *Table) Grid(includeIndex bool) [][]string {
	width := len(t.Columns)
	if includeIndex {
		width++
	}
	grid := make([][]string, 0, len(t.Rows)+1)

	header := make([]string, 0, width)
	if includeIndex {
		header = append(header, t.IndexName)
	}
	grid = append(grid, append(header, t.Columns...))

	for i, r := range t.Rows {
		line := make([]string, 0, width)
		if includeIndex {
			line = append(line, t.Index[i])
		}
		line = append(line, r...)
		for len(line) < width {
			line = append(line, "")
		}
		grid = append(grid, line)
	}
	return grid
}

// TableFromGrid parses rows read from a sheet: the first row is the header
// and the first column the index. Trailing blank rows are dropped.
func TableFromGrid(grid [][]string) *Table {
	for len(grid) > 0 && blank(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	t := &Table{}
	if len(grid) == 0 {
		return t
	}

	header := grid[0]
	if len(header) > 0 {
		t.IndexName = header[0]
		t.Columns = append([]string(nil), header[1:]...)
	}
	for _, line := range grid[1:] {
		row := make([]string, len(t.Columns))
		idx := ""
		if len(line) > 0 {
			idx = line[0]
		}
		for j := range row {
			if j+1 < len(line) {
				row[j] = line[j+1]
			}
		}
		t.Index = append(t.Index, idx)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(line []string) bool {
	for _, v := range line {
		if v != "" {
			return false
		}
	}
	return true
}
