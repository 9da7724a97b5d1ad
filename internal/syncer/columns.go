// internal/syncer/columns.go
package syncer

import (
	"strings"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/sheets"
)

const (
	indexColumn   = "idItem"
	depositColumn = "nombre" // deposit name in a stock row
	errorMark     = "Error"
	tempPrefix    = "temp_"
	sheetDate     = "02-01-2006"
	stampLayout   = "2006-01-02 15:04:05"
)

// Columns of the working table, after the idItem index, in sheet order.
var Columns = []string{
	"nombre",
	"codigo",
	"descripcion",
	"tipoItem",
	"unidadMedida",
	"precioVenta",
	"costoCalculado",
	"disponibilidad",
}

// DisplayNames are the headers of the final sheet.
var DisplayNames = map[string]string{
	"idItem":         "IdItem",
	"nombre":         "Nombre",
	"codigo":         "Código Item",
	"descripcion":    "Descripción Item",
	"tipoItem":       "Producto/Servicio",
	"unidadMedida":   "U. Medida",
	"precioVenta":    "Precio Venta",
	"costoCalculado": "Costo Calculado",
	"disponibilidad": "Disponible",
}

// live stock, refreshed on every run even when already filled
var alwaysRefresh = []string{"disponibilidad"}

// header row of the working table; data starts one row below
var startCell = sheets.Cell{Row: 3, Col: 1}

var (
	markerFrom = sheets.Cell{Row: 1, Col: 1}
	markerTo   = sheets.Cell{Row: 1, Col: 2}
)

// TempSheetName is temp_<deposit>_<dd-mm-YYYY>.
func TempSheetName(deposit string, now time.Time) string {
	return tempPrefix + deposit + "_" + now.Format(sheetDate)
}

// FinalSheetName strips the temp prefix.
func FinalSheetName(temp string) string {
	return strings.TrimPrefix(temp, tempPrefix)
}

// columnsToUpdate is every empty column plus the always refreshed ones,
// without repeats.
func columnsToUpdate(t *sheets.Table) []string {
	out := t.EmptyColumns()
	for _, c := range alwaysRefresh {
		seen := false
		for _, o := range out {
			if o == c {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, c)
		}
	}
	return out
}

// sheetColumn is the 1-based sheet column of a table column, counting the
// index column written first.
func sheetColumn(t *sheets.Table, col string) int {
	return startCell.Col + t.ColumnIndex(col) + 1
}
