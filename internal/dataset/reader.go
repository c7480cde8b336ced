package dataset

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitat-api/internal/fetcher"
)

// Table is a header row plus a stream of data rows.
type Table struct {
	Header []string
	Rows   <-chan []string

	errs   <-chan error
	cancel context.CancelFunc
	closer io.Closer
}

// OpenTable opens a dataset file and reads its header. The format follows
// the extension: .xlsx reads the first sheet, .tsv and .tsv.gz are tab
// separated, everything else is comma separated. A .gz suffix is
// decompressed. The caller must Close the table.
func OpenTable(ctx context.Context, path string) (*Table, error) {
	ctx, cancel := context.WithCancel(ctx)
	t := &Table{cancel: cancel}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		t.Rows, t.errs = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{})
	default:
		rc, err := fetcher.OpenDelimited(path)
		if err != nil {
			cancel()
			return nil, eris.Wrap(err, "dataset: open table")
		}
		t.closer = rc

		opts := fetcher.CSVOptions{TrimSpace: true}
		if strings.HasSuffix(lower, ".tsv") || strings.HasSuffix(lower, ".tsv.gz") {
			opts.Delimiter = '\t'
		}
		t.Rows, t.errs = fetcher.StreamCSV(ctx, rc, opts)
	}

	header, ok := <-t.Rows
	if !ok {
		err := t.Err()
		_ = t.Close()
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read header")
		}
		return nil, eris.Wrapf(ErrMissingColumn, "dataset: %s has no header row", path)
	}
	t.Header = header
	return t, nil
}

// Err returns the first read error. Call it after Rows is drained.
func (t *Table) Err() error {
	for err := range t.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close stops the row stream and releases the underlying file.
func (t *Table) Close() error {
	t.cancel()
	// Drain so the producer goroutine observes cancellation and exits.
	for range t.Rows {
	}
	if t.closer != nil {
		return eris.Wrap(t.closer.Close(), "dataset: close table")
	}
	return nil
}
