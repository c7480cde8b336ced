package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/dataset"
	"github.com/sells-group/habitat-api/internal/store"
)

// queryError is a client mistake in request parameters.
type queryError struct {
	msg string
}

func (e *queryError) Error() string { return e.msg }

func badQuery(msg string) error { return &queryError{msg: msg} }

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// fail maps err to a status code and writes it. Server errors are logged
// and their detail withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var qe *queryError
	var tooBig *http.MaxBytesError

	switch {
	case errors.As(err, &qe):
		respondError(w, http.StatusBadRequest, qe.msg)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "country doesn't exist in the dataset")
	case errors.Is(err, dataset.ErrMissingColumn):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &tooBig):
		respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
	default:
		s.log.Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
