package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/config"
	"github.com/sells-group/habitat-api/internal/fetcher"
	"github.com/sells-group/habitat-api/internal/resilience"
)

var fetchKeep bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <profile> <url>",
	Short: "Download a dataset over HTTP(S) or FTP and ingest it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "fetch")
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := env.Profiles.Get(args[0])
		if err != nil {
			return err
		}

		path, err := download(ctx, newFetcher(cfg), cfg.Fetch.TempDir, args[1])
		if err != nil {
			return err
		}
		if !fetchKeep {
			defer os.Remove(path) //nolint:errcheck
		}

		out, err := env.Ingester.Ingest(ctx, path, profile)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), out)
	},
}

func newFetcher(c *config.Config) fetcher.Fetcher {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	retry := resilience.DefaultRetryConfig()
	if c.Fetch.MaxAttempts > 0 {
		retry.MaxAttempts = c.Fetch.MaxAttempts
	}
	return &fetcher.Router{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			RatePerSec: c.Fetch.RatePerSec,
			Retry:      retry,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
	}
}

// download saves rawURL under dir with a unique prefix, keeping the remote
// file name so its extension selects the reader.
func download(ctx context.Context, f fetcher.Fetcher, dir, rawURL string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "fetch: create %s", dir)
	}
	dest := filepath.Join(dir, uuid.NewString()[:8]+"-"+fetcher.FileName(rawURL))

	start := time.Now()
	n, err := f.DownloadToFile(ctx, rawURL, dest)
	if err != nil {
		os.Remove(dest) //nolint:errcheck
		return "", eris.Wrapf(err, "fetch: download %s", rawURL)
	}
	zap.L().Info("fetch: downloaded",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return dest, nil
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchKeep, "keep", false, "keep the downloaded file after ingestion")
	rootCmd.AddCommand(fetchCmd)
}
