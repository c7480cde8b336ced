package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/habitat-api/internal/score"
)

type countryScoreResponse struct {
	Country string   `json:"country"`
	Year    int      `json:"year"`
	Score   *float64 `json:"score"`
}

type catalogResponse struct {
	Year   int                 `json:"year"`
	Scores map[string]*float64 `json:"scores"`
}

type countriesResponse struct {
	Countries []string `json:"countries"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: "datastore unreachable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handlePrediction serves /score, /air_pollution_prediction and
// /heat_prediction. With a country it returns that country's score,
// otherwise every stored country's.
func (s *Server) handlePrediction(metric score.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parsePrediction(r.URL.Query(), s.now())
		if err != nil {
			s.fail(w, r, err)
			return
		}

		if q.Country != "" {
			v, err := s.deps.Scores.Country(r.Context(), metric, q.Country, q.Year)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			respondJSON(w, http.StatusOK, countryScoreResponse{Country: q.Country, Year: q.Year, Score: v})
			return
		}

		scores, err := s.deps.Scores.Catalog(r.Context(), metric, q.Year)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, catalogResponse{Year: q.Year, Scores: scores})
	}
}

// handleCountries handles GET /countries?q=
func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Scores.Countries(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	respondJSON(w, http.StatusOK, countriesResponse{Countries: list})
}
