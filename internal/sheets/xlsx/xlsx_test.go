package xlsx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func inventoryTable() *sheets.Table {
	t := sheets.NewTable("idItem", []string{"nombre", "codigo", "disponibilidad"})
	t.Append("100", map[string]string{"codigo": "MESA"})
	t.Append("101", map[string]string{"codigo": "SILLA"})
	return t
}

func TestWorkbookLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "inventory.xlsx")

	w, err := Open(zerolog.Nop(), path)
	require.NoError(t, err)

	ok, err := w.FindSheet(ctx, "temp_Local_01-02-2024")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(w.OpenSheet(ctx, "temp_Local_01-02-2024", false), sheets.ErrSheetNotFound))

	require.NoError(t, w.OpenSheet(ctx, "temp_Local_01-02-2024", true))
	assert.Equal(t, []string{"temp_Local_01-02-2024"}, w.Sheets(), "placeholder sheet dropped")
	assert.FileExists(t, path)

	require.NoError(t, w.WriteCells(ctx, "temp_Local_01-02-2024", sheets.Cell{Row: 1, Col: 1}, sheets.Cell{Row: 1, Col: 2}, []string{"Updating sheet...", ""}))
	require.NoError(t, w.WriteTable(ctx, "temp_Local_01-02-2024", inventoryTable(), sheets.Cell{Row: 3, Col: 1}, true))
	require.NoError(t, w.WriteCells(ctx, "temp_Local_01-02-2024", sheets.Cell{Row: 4, Col: 2}, sheets.Cell{Row: 5, Col: 2}, []string{"Local", "Local"}))
	require.NoError(t, w.Close())

	// reopen from disk: the working sheet is the checkpoint
	w, err = Open(zerolog.Nop(), path)
	require.NoError(t, err)
	defer w.Close()

	ok, err = w.FindSheet(ctx, "temp_Local_01-02-2024")
	require.NoError(t, err)
	assert.True(t, ok)

	tbl, err := w.ReadTable(ctx, "temp_Local_01-02-2024", 3)
	require.NoError(t, err)
	assert.Equal(t, "idItem", tbl.IndexName)
	assert.Equal(t, []string{"nombre", "codigo", "disponibilidad"}, tbl.Columns)
	assert.Equal(t, []string{"100", "101"}, tbl.Index)
	assert.Equal(t, []string{"Local", "Local"}, tbl.Column("nombre", 0, 2))
	assert.Equal(t, []string{"", ""}, tbl.Column("disponibilidad", 0, 2))

	require.NoError(t, w.WriteTable(ctx, "Local_01-02-2024", tbl.Renamed(map[string]string{"nombre": "Nombre"}), sheets.Cell{Row: 3, Col: 1}, false))
	require.NoError(t, w.DeleteSheet(ctx, "temp_Local_01-02-2024"))
	assert.Equal(t, []string{"Local_01-02-2024"}, w.Sheets())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Local_01-02-2024", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Nombre", v)
	v, err = f.GetCellValue("Local_01-02-2024", "B5")
	require.NoError(t, err)
	assert.Equal(t, "SILLA", v)
}

func TestWriteCellsRejectsSizeMismatch(t *testing.T) {
	ctx := context.Background()
	w, err := Open(zerolog.Nop(), filepath.Join(t.TempDir(), "w.xlsx"))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.OpenSheet(ctx, "s", true))

	err = w.WriteCells(ctx, "s", sheets.Cell{Row: 1, Col: 1}, sheets.Cell{Row: 3, Col: 1}, []string{"a"})
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	_, err := sheets.Open(context.Background(), zerolog.Nop(), "xlsx", []byte(`{}`))
	assert.Error(t, err, "path required")

	path := filepath.Join(t.TempDir(), "f.xlsx")
	g, err := sheets.Open(context.Background(), zerolog.Nop(), "xlsx", []byte(`{"path": "`+filepath.ToSlash(path)+`"}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(path), g.Location())
}
