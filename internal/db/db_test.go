package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jguecaimburu/colppy-to-gsheets/internal/cache"
	"github.com/jguecaimburu/colppy-to-gsheets/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Handle {
	t.Helper()
	h, err := OpenAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpen(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
	_, err = Open("sqlite", "")
	assert.Error(t, err)

	h, err := Open("", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", h.Driver)
	require.NoError(t, h.Migrate())
	require.NoError(t, h.Migrate(), "migrate is repeatable")
	require.NoError(t, h.Close())
}

func TestKVStore(t *testing.T) {
	h := openTest(t)
	kv := h.KV()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := kv.Get(ctx, "companies")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))

	require.NoError(t, kv.Set(ctx, "companies", []byte(`{"Acme":"1"}`), time.Hour))
	v, err := kv.Get(ctx, "companies")
	require.NoError(t, err)
	assert.Equal(t, `{"Acme":"1"}`, string(v))

	// upsert replaces value and expiry
	require.NoError(t, kv.Set(ctx, "companies", []byte(`{}`), 0))
	now = now.Add(48 * time.Hour)
	v, err = kv.Get(ctx, "companies")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(v))

	require.NoError(t, kv.Set(ctx, "short", []byte("x"), time.Minute))
	ok, err := kv.Exists(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)
	now = now.Add(time.Minute)
	ok, err = kv.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	calls := 0
	fn := func() ([]byte, error) { calls++; return []byte("v"), nil }
	for i := 0; i < 2; i++ {
		v, err = kv.GetOrSet(ctx, "lazy", 0, fn)
		require.NoError(t, err)
		assert.Equal(t, "v", string(v))
	}
	assert.Equal(t, 1, calls)

	require.NoError(t, kv.Delete(ctx, "lazy"))
	ok, _ = kv.Exists(ctx, "lazy")
	assert.False(t, ok)

	require.NoError(t, kv.Clear(ctx))
	_, err = kv.Get(ctx, "companies")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}

func TestKVStoreJSON(t *testing.T) {
	kv := openTest(t).KV()
	ctx := context.Background()
	require.NoError(t, cache.SetJSON(ctx, kv, "cc:1", map[string]string{"Local": "33516"}, 0))
	var got map[string]string
	ok, err := cache.GetJSON(ctx, kv, "cc:1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "33516", got["Local"])
}

func TestLedger(t *testing.T) {
	h := openTest(t)
	l := h.Ledger(zerolog.Nop(), "memory")
	ctx := context.Background()
	start := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	ok := &syncer.Summary{RunID: "run-1", Deposit: "Local", TempSheet: "temp_Local_01-02-2024", FinalSheet: "Local_01-02-2024", StartedAt: start}
	l.RunStarted(ctx, ok)
	l.ItemFailed(ctx, "run-1", "0", syncer.ErrZeroItem)
	ok.Processed, ok.Failed, ok.Total, ok.Flushes = 5, 1, 5, 1
	ok.FinishedAt = start.Add(time.Minute)
	l.RunFinished(ctx, ok, nil)

	bad := &syncer.Summary{RunID: "run-2", Deposit: "Central", StartedAt: start.Add(time.Hour)}
	l.RunStarted(ctx, bad)
	l.RunFinished(ctx, bad, fmt.Errorf("flush Central rows: %w", errors.New("quota exceeded")))

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, StatusError, runs[0].Status)
	assert.Contains(t, runs[0].LastError, "Central")

	assert.Equal(t, StatusDone, runs[1].Status)
	assert.Equal(t, 5, runs[1].Processed)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, "memory", runs[1].Store)
	assert.Equal(t, "temp_Local_01-02-2024", runs[1].TempSheet)
	assert.Equal(t, "Local_01-02-2024", runs[1].Sheet)
	require.NotNil(t, runs[1].FinishedAt)

	fails, err := l.Failures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, fails, 1)
	assert.Equal(t, "0", fails[0].ItemID)
	assert.Equal(t, "item id 0", fails[0].Reason)
}
