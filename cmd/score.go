package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/habitat-api/internal/model"
	"github.com/sells-group/habitat-api/internal/score"
)

var (
	scoreCountry string
	scoreYear    int
	scoreMetric  string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print scores as JSON",
	Long:  "Prints the score for --country, or for every stored country when omitted. --metric selects overall, air or heat.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "score")
		if err != nil {
			return err
		}
		defer env.Close()

		year := scoreYear
		if year == 0 {
			year = time.Now().Year()
		}
		return printScores(ctx, cmd.OutOrStdout(), env.Scores, score.Metric(strings.ToLower(scoreMetric)), scoreCountry, year)
	},
}

type scorer interface {
	Country(ctx context.Context, metric score.Metric, country string, year int) (*float64, error)
	Catalog(ctx context.Context, metric score.Metric, year int) (map[string]*float64, error)
}

func printScores(ctx context.Context, w io.Writer, s scorer, metric score.Metric, country string, year int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if country != "" {
		country, _ = model.CanonicalCountry(country)
		v, err := s.Country(ctx, metric, country, year)
		if err != nil {
			return err
		}
		return eris.Wrap(enc.Encode(map[string]any{"country": country, "year": year, "score": v}), "write score")
	}

	scores, err := s.Catalog(ctx, metric, year)
	if err != nil {
		return err
	}
	return eris.Wrap(enc.Encode(map[string]any{"year": year, "scores": scores}), "write scores")
}

func init() {
	scoreCmd.Flags().StringVar(&scoreCountry, "country", "", "ISO 3166 country code or dataset country name")
	scoreCmd.Flags().IntVar(&scoreYear, "year", 0, "prediction year (default current year)")
	scoreCmd.Flags().StringVar(&scoreMetric, "metric", string(score.MetricOverall), "overall, air or heat")
	rootCmd.AddCommand(scoreCmd)
}
