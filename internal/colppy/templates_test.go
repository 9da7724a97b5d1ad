package colppy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateTemplatesWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload_templates.json")

	tmpl, created, err := LoadOrCreateTemplates(path, testCreds)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)
	assert.Len(t, tmpl, len(Operations))
	assert.Equal(t, testCreds.DevUser, tmpl[OpListInventory].Auth)

	// credentials are never written to disk
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "userhash")
	assert.NotContains(t, string(raw), "devhash")

	again, created, err := LoadOrCreateTemplates(path, testCreds)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tmpl[OpListInvoices].Service, again[OpListInvoices].Service)
	assert.Equal(t, "user@example.com", again[OpLogin].Parameters["usuario"])
}

func TestLoadTemplatesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, SaveTemplates(path, DefaultTemplates()))

	tmpl, created, err := LoadOrCreateTemplates(path, testCreds)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, services[OpListDiary], tmpl[OpListDiary].Service)

	s, err := NewTemplateStore(tmpl, "9")
	require.NoError(t, err)
	s.SetSession("k")
	p, err := s.Build(OpListInvoices, Params{Dates: []string{"2020-01-01", "2020-01-02"}})
	require.NoError(t, err)
	assert.Equal(t, "9", p.Parameters["idEmpresa"])
}

func TestLoadTemplatesMissingOperation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload_templates.json")
	tmpl := DefaultTemplates()
	delete(tmpl, OpListDeposits)
	require.NoError(t, SaveTemplates(path, tmpl))

	_, _, err := LoadOrCreateTemplates(path, testCreds)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Reason, string(OpListDeposits))
}

func TestLoadTemplatesInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload_templates.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, _, err := LoadOrCreateTemplates(path, testCreds)
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}
