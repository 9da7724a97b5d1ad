package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/colppy"
	conf "github.com/jguecaimburu/colppy-to-gsheets/internal/config"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeColppy answers the operations the commands use.
type fakeColppy struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeColppy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Service    colppy.Service `json:"service"`
		Parameters map[string]any `json:"parameters"`
	}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &req)

	f.mu.Lock()
	f.calls[req.Service.Operation]++
	f.mu.Unlock()

	var response map[string]any
	switch req.Service.Operation {
	case "iniciar_sesion":
		response = map[string]any{"success": true, "data": map[string]any{"claveSesion": "key-1"}}
	case "listar_empresa":
		response = map[string]any{"success": true, "data": []any{
			map[string]any{"IdEmpresa": "19044", "razonSocial": "Acme SA"},
		}}
	case "listar_itemsinventario":
		response = map[string]any{"success": true, "data": []any{
			map[string]any{"idItem": "1", "nombre": "Silla", "codigo": "S-1", "descripcion": "silla", "tipoItem": "P", "unidadMedida": "u", "precioVenta": "10", "costoCalculado": "6"},
			map[string]any{"idItem": "2", "nombre": "Mesa", "codigo": "M-1", "descripcion": "mesa", "tipoItem": "P", "unidadMedida": "u", "precioVenta": "30", "costoCalculado": "20"},
		}}
	case "listar_dispDeposito":
		response = map[string]any{"success": true, "data": []any{
			map[string]any{"nombre": "Local", "disponibilidad": "7"},
			map[string]any{"nombre": "Otro", "disponibilidad": "1"},
		}}
	case "listar_movimientosdiario":
		response = map[string]any{"success": true, "movimientos": []any{
			map[string]any{"idAsiento": "1", "ccosto1": "33516", "ccosto2": ""},
			map[string]any{"idAsiento": "2", "ccosto1": "33515", "ccosto2": ""},
		}}
	default:
		response = map[string]any{"success": false, "message": "unknown operation"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"estado": 0}, "response": response})
}

func resetFlags() {
	cfgFile, dataDir, state, verbose = "", "", "", false
	syncFlags = syncOptions{}
	listFlags = listOptions{}
	costCentersFlags = costCenterOptions{}
}

// setup writes a working config pointing at a fake Colppy server.
func setup(t *testing.T) (string, *fakeColppy) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	api := &fakeColppy{calls: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := conf.Default(dir)
	cfg.Colppy.Credentials = colppy.Credentials{
		DevUser: colppy.Credential{User: "dev@example.com", Password: "devhash"},
		User:    colppy.Credential{User: "user@example.com", Password: "userhash"},
	}
	cfg.Colppy.Defaults.CompanyID = "19044"
	cfg.Colppy.BaseURL = srv.URL
	require.NoError(t, conf.Save(filepath.Join(dir, "config.json"), cfg))
	return dir, api
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	dir, api := setup(t)
	book := filepath.Join(dir, "out.xlsx")

	out, err := run(t, "sync", "--data-dir", dir, "--deposit", "Local", "--spreadsheet", book, "--batch-size", "1")
	require.NoError(t, err)

	final := syncer.FinalSheetName(syncer.TempSheetName("Local", time.Now()))
	assert.Contains(t, out, "sheet:     "+final)
	assert.Contains(t, out, "processed: 2/2")
	assert.Contains(t, out, "flushes:   2")
	assert.Equal(t, 1, api.calls["iniciar_sesion"])
	assert.Equal(t, 1, api.calls["listar_itemsinventario"])
	assert.Equal(t, 2, api.calls["listar_dispDeposito"])

	f, err := excelize.OpenFile(book)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{final}, f.GetSheetList())
	v, err := f.GetCellValue(final, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Nombre", v)
	v, err = f.GetCellValue(final, "H5")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
	v, err = f.GetCellValue(final, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Updated on:", v)

	// ledger and metrics were written to the data dir
	assert.FileExists(t, filepath.Join(dir, "colppy2gs.db"))
	prom, err := os.ReadFile(filepath.Join(dir, "colppy2gs.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sync_batch_flushes")
}

func TestSyncUnknownDeposit(t *testing.T) {
	dir, api := setup(t)
	out, err := run(t, "sync", "--data-dir", dir, "--deposit", "Central", "--sheet-store", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "processed: 2/2")
	assert.Contains(t, out, "failed:    2")
	assert.Equal(t, 2, api.calls["listar_dispDeposito"])
}

func TestCompaniesCommand(t *testing.T) {
	dir, _ := setup(t)
	out, err := run(t, "companies", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "Acme SA\t19044\n", out)
}

func TestDiaryCommand(t *testing.T) {
	dir, api := setup(t)
	out, err := run(t, "diary", "--data-dir", dir, "--from", "2024-01-01", "--to", "2024-01-31", "--ccost1", "Local")
	require.NoError(t, err)

	var movs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &movs))
	require.Len(t, movs, 1)
	assert.Equal(t, "1", movs[0]["idAsiento"])
	assert.Equal(t, 0, api.calls["listar_ccostos"], "Local is a seeded cost center")
}

func TestMissingCredentials(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	dir := t.TempDir()

	_, err := run(t, "companies", "--data-dir", dir)
	var cerr *colppy.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.FileExists(t, filepath.Join(dir, "config.json"), "defaults written on first run")
}

func TestVersionCommand(t *testing.T) {
	resetFlags()
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "colppy2gs "+Version)
}

func TestRecordsTable(t *testing.T) {
	tbl := recordsTable([]colppy.Record{
		{"b": "1", "a": json.Number("2")},
		{"c": true},
	})
	assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns)
	assert.Equal(t, []string{"1", "2"}, tbl.Index)
	assert.Equal(t, "2", tbl.Get(0, "a"))
	assert.Equal(t, "true", tbl.Get(1, "c"))
	assert.Equal(t, "", tbl.Get(1, "a"))
}
