package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/habitat-api/internal/dataset"
	"github.com/sells-group/habitat-api/internal/ledger"
	"github.com/sells-group/habitat-api/internal/store"
)

const airCSV = `country,year,co2,nitrous_oxide
GBR,2000,10,1
GBR,2001,10.5,1.5
GBR,2002,11,2
FRA,2000,5,1
World,2000,100,50
World,2002,104,54
`

const heatCSV = `dt,AverageTemperature,Country
2000-01-01,10,GBR
2000-07-01,20,GBR
2001-01-01,11,GBR
2001-07-01,21,GBR
`

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

type fixture struct {
	dir    string
	store  *store.SQLiteStore
	ledger *ledger.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "habitat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return &fixture{dir: dir, store: st, ledger: ledger.New(filepath.Join(dir, "completed.txt"))}
}

func (f *fixture) write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func (f *fixture) ledgerLines(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.dir, "completed.txt"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(b))
}

func TestIngest_AirThenDuplicate(t *testing.T) {
	f := newFixture(t)
	inv := &fakeInvalidator{}
	ing := New(f.store, f.ledger, WithCache(inv))
	path := f.write(t, "air.csv", airCSV)
	ctx := context.Background()

	out, err := ing.Ingest(ctx, path, dataset.AirProfile())
	require.NoError(t, err)
	assert.False(t, out.AlreadyIngested)
	assert.Equal(t, int64(2), out.RecordsWritten)
	assert.Equal(t, []string{"GBR", "World"}, out.Countries)
	assert.Equal(t, 2, out.SkippedCurves)
	assert.Len(t, out.Hash, 40)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 1, inv.calls)

	rec, err := f.store.GetAir(ctx, "GBR")
	require.NoError(t, err)
	assert.True(t, rec.CO2.Valid)
	assert.True(t, rec.NO.Valid)

	assert.Equal(t, []string{out.Hash}, f.ledgerLines(t))

	again, err := ing.Ingest(ctx, path, dataset.AirProfile())
	require.NoError(t, err)
	assert.True(t, again.AlreadyIngested)
	assert.Equal(t, int64(0), again.RecordsWritten)
	assert.Equal(t, out.Hash, again.Hash)
	assert.NotEqual(t, out.RunID, again.RunID)
	assert.Equal(t, 1, inv.calls, "duplicate must not invalidate the cache")
	assert.Equal(t, []string{out.Hash}, f.ledgerLines(t))
}

func TestIngest_SameContentDifferentName(t *testing.T) {
	f := newFixture(t)
	ing := New(f.store, f.ledger)
	ctx := context.Background()

	_, err := ing.Ingest(ctx, f.write(t, "a.csv", airCSV), dataset.AirProfile())
	require.NoError(t, err)

	out, err := ing.Ingest(ctx, f.write(t, "b.csv", airCSV), dataset.AirProfile())
	require.NoError(t, err)
	assert.True(t, out.AlreadyIngested)
}

func TestIngest_Heat(t *testing.T) {
	f := newFixture(t)
	ing := New(f.store, f.ledger)

	out, err := ing.Ingest(context.Background(), f.write(t, "temps.csv", heatCSV), dataset.HeatProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.RecordsWritten)

	rec, err := f.store.GetHeat(context.Background(), "GBR")
	require.NoError(t, err)
	assert.True(t, rec.Avg.Valid)
}

func TestIngest_MissingColumnLeavesLedger(t *testing.T) {
	f := newFixture(t)
	ing := New(f.store, f.ledger)

	_, err := ing.Ingest(context.Background(), f.write(t, "bad.csv", "country,co2\nGBR,1\n"), dataset.AirProfile())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMissingColumn))
	assert.Empty(t, f.ledgerLines(t))
}

func TestIngest_NothingFittedNotRecorded(t *testing.T) {
	f := newFixture(t)
	inv := &fakeInvalidator{}
	ing := New(f.store, f.ledger, WithCache(inv))
	path := f.write(t, "single.csv", "country,year,co2\nGBR,2000,1\nFRA,2000,2\n")

	out, err := ing.Ingest(context.Background(), path, dataset.AirProfile())
	require.NoError(t, err)
	assert.False(t, out.AlreadyIngested)
	assert.Equal(t, int64(0), out.RecordsWritten)
	assert.Empty(t, f.ledgerLines(t))
	assert.Equal(t, 0, inv.calls)

	list, err := f.store.ListAir(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIngest_CacheErrorIsNotFatal(t *testing.T) {
	f := newFixture(t)
	inv := &fakeInvalidator{err: errors.New("redis down")}
	ing := New(f.store, f.ledger, WithCache(inv))

	out, err := ing.Ingest(context.Background(), f.write(t, "air.csv", airCSV), dataset.AirProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.RecordsWritten)
	assert.Equal(t, 1, inv.calls)
}

func TestIngest_BLAKE2b(t *testing.T) {
	f := newFixture(t)
	ing := New(f.store, f.ledger, WithHashAlgorithm(ledger.BLAKE2b))

	out, err := ing.Ingest(context.Background(), f.write(t, "air.csv", airCSV), dataset.AirProfile())
	require.NoError(t, err)
	assert.Len(t, out.Hash, 64)
	assert.Equal(t, []string{out.Hash}, f.ledgerLines(t))
}

func TestIngest_MissingFile(t *testing.T) {
	f := newFixture(t)
	ing := New(f.store, f.ledger)

	_, err := ing.Ingest(context.Background(), filepath.Join(f.dir, "nope.csv"), dataset.AirProfile())
	require.Error(t, err)
	assert.Empty(t, f.ledgerLines(t))
}
