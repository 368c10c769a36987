package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

// serveUpload streams images stored by backends that are served from this
// process (memory and local).
func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Objects == nil {
		s.writeError(w, http.StatusNotFound, "File not found", nil)
		return
	}
	rc, contentType, err := s.deps.Objects.OpenObject(r.Context(), chi.URLParam(r, "*"))
	if errors.Is(err, content.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "File not found", nil)
		return
	}
	if err != nil {
		s.writeError(w, statusFor(err), "Failed to read file", err)
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream upload failed", zap.Error(err))
	}
}
