package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// datasetExts are the upload extensions the tabular reader understands.
var datasetExts = []string{".csv.gz", ".tsv.gz", ".csv", ".tsv", ".txt", ".xlsx"}

// handleUpload handles POST /upload/{profile} with a multipart "file" field.
// The upload is stored under a random name, ingested, and removed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")
	profile, err := s.deps.Profiles.Get(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, badQuery("expected multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	src, hdr, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, badQuery("missing file field"))
		return
	}
	defer src.Close() //nolint:errcheck

	path, err := s.saveUpload(src, hdr.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer os.Remove(path) //nolint:errcheck

	s.log.Info("api: dataset uploaded",
		zap.String("profile", profile.Name),
		zap.String("filename", hdr.Filename),
		zap.Int64("size", hdr.Size),
		zap.String("request_id", requestID(r)),
	)

	out, err := s.deps.Ingester.Ingest(r.Context(), path, profile)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "api: create upload dir")
	}

	path := filepath.Join(dir, uuid.NewString()+uploadExt(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "api: create upload file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()     //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(err, "api: write upload")
	}
	if err := dst.Close(); err != nil {
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(err, "api: close upload")
	}
	return path, nil
}

// uploadExt keeps a recognised dataset extension so the reader picks the
// right format. Anything else is treated as CSV.
func uploadExt(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range datasetExts {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".csv"
}
