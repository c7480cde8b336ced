package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/habitat-api/internal/dataset"
)

type watchResult struct {
	path string
	out  Outcome
	err  error
}

func TestWatcher_IngestsExistingAndNewFiles(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "drop")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "air"), 0o755))
	existing := filepath.Join(root, "air", "owid.csv")
	require.NoError(t, os.WriteFile(existing, []byte(airCSV), 0o644))

	results := make(chan watchResult, 4)
	w := NewWatcher(New(f.store, f.ledger), dataset.DefaultRegistry(), root, 100*time.Millisecond)
	w.OnOutcome = func(path string, out Outcome, err error) {
		results <- watchResult{path: path, out: out, err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := waitResult(t, results)
	assert.Equal(t, existing, first.path)
	require.NoError(t, first.err)
	assert.Equal(t, int64(2), first.out.RecordsWritten)

	assert.DirExists(t, filepath.Join(root, "heat"))

	heatPath := filepath.Join(root, "heat", "temps.csv")
	require.NoError(t, os.WriteFile(heatPath, []byte(heatCSV), 0o644))

	second := waitResult(t, results)
	assert.Equal(t, heatPath, second.path)
	require.NoError(t, second.err)
	assert.Equal(t, "heat", second.out.Profile)
	assert.Equal(t, int64(1), second.out.RecordsWritten)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func waitResult(t *testing.T, ch <-chan watchResult) watchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for ingestion")
		return watchResult{}
	}
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored(".hidden.csv"))
	assert.True(t, ignored("upload.csv.tmp"))
	assert.True(t, ignored("big.csv.part"))
	assert.False(t, ignored("owid.csv"))
}
