// Package ledger records content hashes of datasets that have already been
// ingested so the same file is never processed twice.
package ledger

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/blake2b"
)

// chunkSize bounds memory while hashing large datasets.
const chunkSize = 64 * 1024

// Algorithm names a supported content hash.
type Algorithm string

const (
	SHA1    Algorithm = "sha1"
	BLAKE2b Algorithm = "blake2b"
)

// ParseAlgorithm validates a configured hash algorithm name. Empty means SHA1.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha1":
		return SHA1, nil
	case "blake2b", "blake2b-256":
		return BLAKE2b, nil
	default:
		return "", eris.Errorf("ledger: unknown hash algorithm %q (valid: sha1, blake2b)", s)
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case "", SHA1:
		return sha1.New(), nil //nolint:gosec
	case BLAKE2b:
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: init blake2b")
		}
		return h, nil
	default:
		return nil, eris.Errorf("ledger: unknown hash algorithm %q", string(a))
	}
}

// HashFile returns the hex digest of the file at path.
func HashFile(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "ledger: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return HashReader(f, algo)
}

// HashReader returns the hex digest of everything read from r.
func HashReader(r io.Reader, algo Algorithm) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", eris.Wrap(err, "ledger: hash content")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Ledger is an append-only file of processed content hashes, one per line.
// The check-then-append sequence holds an in-process mutex and an exclusive
// lock on <path>.lock, so a server and a watcher sharing the file never
// both ingest the same content.
type Ledger struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a Ledger backed by the file at path. The file is created on
// first append.
func New(path string) *Ledger {
	return &Ledger{path: path, lock: flock.New(path + ".lock")}
}

// Guard runs fn unless hash is already recorded, holding the ledger lock for
// the whole sequence. When fn returns record=true and no error, the hash is
// appended. The returned bool is true when the hash was already present.
func (l *Ledger) Guard(hash string, fn func() (record bool, err error)) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return false, eris.Wrapf(err, "ledger: lock %s", l.lock.Path())
	}
	defer l.lock.Unlock() //nolint:errcheck

	seen, err := l.contains(hash)
	if err != nil {
		return false, err
	}
	if seen {
		return true, nil
	}

	record, err := fn()
	if err != nil {
		return false, err
	}
	if record {
		if err := l.append(hash); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (l *Ledger) contains(hash string) (bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "ledger: open %s", l.path)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == hash {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, eris.Wrapf(err, "ledger: scan %s", l.path)
	}
	return false, nil
}

func (l *Ledger) append(hash string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "ledger: open %s for append", l.path)
	}
	if _, err := f.WriteString(hash + "\n"); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "ledger: append to %s", l.path)
	}
	return eris.Wrapf(f.Close(), "ledger: close %s", l.path)
}
