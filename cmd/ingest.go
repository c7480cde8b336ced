package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/habitat-api/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <profile> <file>",
	Short: "Fit and store a local dataset file",
	Long:  "Hashes the file, skips it if already ingested, otherwise fits per-country trends with the named profile (air, heat, or one from ingest.profiles_path) and upserts the coefficients.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := env.Profiles.Get(args[0])
		if err != nil {
			return err
		}

		out, err := env.Ingester.Ingest(ctx, args[1], profile)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), out)
	},
}

func printOutcome(w io.Writer, out ingest.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(out), "write outcome")
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
