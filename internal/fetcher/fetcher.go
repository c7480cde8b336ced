package fetcher

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote dataset to a local file.
type Fetcher interface {
	// DownloadToFile fetches rawURL and writes it to dest. Returns bytes written.
	DownloadToFile(ctx context.Context, rawURL string, dest string) (int64, error)
}

// Router dispatches downloads by URL scheme.
type Router struct {
	HTTP Fetcher
	FTP  Fetcher
}

// DownloadToFile implements Fetcher.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, dest string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: parse url")
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = r.HTTP
	case "ftp":
		f = r.FTP
	default:
		return 0, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return 0, eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}
	return f.DownloadToFile(ctx, rawURL, dest)
}

// FileName returns the last path element of rawURL, used to keep the
// dataset's extension when saving it locally.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "dataset.csv"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "dataset.csv"
	}
	return name
}
