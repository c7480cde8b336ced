package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestHashFile_SHA1(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "abc.txt", "abc")

	got, err := HashFile(p, SHA1)
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", got)
}

func TestHashFile_EmptyFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.csv", "")
	got, err := HashFile(p, SHA1)
	require.NoError(t, err)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", got)
}

func TestHashFile_LargerThanChunk(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("country,year,co2\nGBR,2000,1.5\n", 10000)
	p := writeFile(t, dir, "big.csv", content)

	fromFile, err := HashFile(p, SHA1)
	require.NoError(t, err)
	fromReader, err := HashReader(strings.NewReader(content), SHA1)
	require.NoError(t, err)
	assert.Equal(t, fromReader, fromFile)
}

func TestHashFile_BLAKE2b(t *testing.T) {
	p := writeFile(t, t.TempDir(), "abc.txt", "abc")
	got, err := HashFile(p, BLAKE2b)
	require.NoError(t, err)
	assert.Len(t, got, 64)

	sha, err := HashFile(p, SHA1)
	require.NoError(t, err)
	assert.NotEqual(t, sha, got)
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.csv"), SHA1)
	require.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA1, false},
		{"SHA1", SHA1, false},
		{"blake2b", BLAKE2b, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLedger_GuardAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed.txt")
	l := New(path)
	record := func() (bool, error) { return true, nil }

	already, err := l.Guard("d02ccdc8d76ef50dc50972727f19d47f5702fa96", record)
	require.NoError(t, err)
	assert.False(t, already, "missing ledger file is an empty ledger")

	already, err = l.Guard("9a8beadca09d671bc9eab5cc037825521e95fce3", record)
	require.NoError(t, err)
	assert.False(t, already)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "d02ccdc8d76ef50dc50972727f19d47f5702fa96\n9a8beadca09d671bc9eab5cc037825521e95fce3\n", string(data))
}

func TestLedger_GuardMatchesTrimmedLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "completed.txt", "  abc123 \r\nother\n")
	already, err := New(path).Guard("abc123", func() (bool, error) {
		t.Fatal("recorded hash must not run again")
		return false, nil
	})
	require.NoError(t, err)
	assert.True(t, already)
}

func TestLedger_Guard(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "completed.txt"))

	calls := 0
	already, err := l.Guard("h1", func() (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.False(t, already)

	already, err = l.Guard("h1", func() (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, 1, calls)
}

func TestLedger_GuardDoesNotRecordOnFailureOrEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed.txt")
	l := New(path)

	_, err := l.Guard("h1", func() (bool, error) { return false, errors.New("boom") })
	require.Error(t, err)

	_, err = l.Guard("h1", func() (bool, error) { return false, nil })
	require.NoError(t, err)

	seen, err := l.contains("h1")
	require.NoError(t, err)
	assert.False(t, seen)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLedger_GuardConcurrentSameHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed.txt")
	l := New(path)

	var runs atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Guard("same", func() (bool, error) {
				runs.Add(1)
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "same\n", string(data))
}

func TestLedger_GuardAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed.txt")

	var runs atomic.Int32
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := New(path).Guard("shared", func() (bool, error) {
				runs.Add(1)
				time.Sleep(10 * time.Millisecond)
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shared\n", string(data))
}

func TestLedger_GuardWaitsForFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "completed.txt")
	other := flock.New(path + ".lock")
	require.NoError(t, other.Lock())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := New(path).Guard("h1", func() (bool, error) { return true, nil })
		assert.NoError(t, err)
	}()

	select {
	case <-done:
		t.Fatal("guard ran while another holder had the lock")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, other.Unlock())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("guard did not resume after unlock")
	}
}
