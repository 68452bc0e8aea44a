package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"jarconsole/internal/jarclient"
	"jarconsole/internal/models"
)

type serviceRef struct {
	ID string `validate:"required,max=128"`
}

type fileRef struct {
	ID   string `validate:"required,max=128"`
	Name string `validate:"required,max=255"`
}

type createRequest struct {
	Name     string `validate:"required,max=128"`
	FileName string `validate:"required,max=255,endswith=.jar"`
}

func (s *Server) handleAction(action func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := serviceRef{ID: chi.URLParam(r, "id")}
		if err := validate.Struct(ref); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
			return
		}

		if err := action(r.Context(), ref.ID); err != nil {
			s.actionFailed(w, r, ref.ID, err)
			return
		}
		s.poller.Refresh()
		writeJSON(w, http.StatusOK, models.Envelope[struct{}]{Code: models.CodeSuccess})
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing jar file")
		return
	}
	defer file.Close()

	req := createRequest{Name: strings.TrimSpace(r.FormValue("name")), FileName: header.Filename}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	if err := s.actions.Create(r.Context(), req.Name, req.FileName, file); err != nil {
		s.actionFailed(w, r, req.Name, err)
		return
	}
	s.poller.Refresh()
	writeJSON(w, http.StatusOK, models.Envelope[struct{}]{Code: models.CodeSuccess})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	ref := serviceRef{ID: chi.URLParam(r, "id")}
	if err := validate.Struct(ref); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	env, err := s.actions.Files(r.Context(), ref.ID)
	if err != nil {
		s.actionFailed(w, r, ref.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ref := fileRef{ID: chi.URLParam(r, "id"), Name: chi.URLParam(r, "name")}
	if err := validate.Struct(ref); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.Name))
	rec := &lazyWriter{ResponseWriter: w}
	if _, err := s.actions.Download(r.Context(), ref.ID, ref.Name, rec); err != nil {
		if rec.started {
			s.logger.Warn().Err(err).Str("id", ref.ID).Str("file", ref.Name).Msg("download interrupted")
			return
		}
		w.Header().Del("Content-Disposition")
		s.actionFailed(w, r, ref.ID, err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ref := serviceRef{ID: chi.URLParam(r, "id")}
	if err := validate.Struct(ref); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if err := s.actions.Upload(r.Context(), ref.ID, header.Filename, file); err != nil {
		s.actionFailed(w, r, ref.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope[struct{}]{Code: models.CodeSuccess})
}

// actionFailed reports a failed panel call. The service list is left alone.
func (s *Server) actionFailed(w http.ResponseWriter, r *http.Request, id string, err error) {
	logger := s.logger.With().Str("request_id", requestID(r)).Str("id", id).Logger()
	switch {
	case errors.Is(err, jarclient.ErrMissingID), errors.Is(err, jarclient.ErrNotJar):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("panel action failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// lazyWriter remembers whether any body bytes reached the client.
type lazyWriter struct {
	http.ResponseWriter
	started bool
}

func (w *lazyWriter) Write(p []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(p)
}
