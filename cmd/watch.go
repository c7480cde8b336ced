package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/ingest"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest datasets dropped into <dir>/<profile>/",
	Long:  "Creates one subdirectory per profile (e.g. <dir>/heat, <dir>/air) and ingests every file written there. Files already in the ledger are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		w := ingest.NewWatcher(env.Ingester, env.Profiles, args[0], settleDuration(cfg))
		w.OnOutcome = func(path string, out ingest.Outcome, err error) {
			if err != nil {
				return
			}
			zap.L().Info("watch: processed",
				zap.String("path", path),
				zap.Int64("records", out.RecordsWritten),
				zap.Bool("already_ingested", out.AlreadyIngested),
			)
		}
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
