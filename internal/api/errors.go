package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/auth"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/opengraph"
	"github.com/JakeFAU/magazine-cms/internal/validation"
)

type errorBody struct {
	Error   string                  `json:"error"`
	Details string                  `json:"details,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

// writeError answers a human-facing failure with JSON. The wrapped error is
// only echoed back when the environment exposes internals; validation field
// errors are always returned.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			body.Fields = verr.Fields
		}
		if s.cfg.Environment.ExposeInternals {
			body.Details = err.Error()
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error(msg, zap.Int("status", status), zap.Error(err))
		} else {
			s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
		}
	}
	s.writeJSON(w, status, body)
}

// writeArticleError formats a failure of the single-article read path for
// the caller class that made the request.
func (s *Server) writeArticleError(w http.ResponseWriter, resp opengraph.Response, err error) {
	if errors.Is(err, opengraph.ErrRender) {
		s.logger.Error("render preview failed", zap.Error(err))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Failed to render article preview"))
		return
	}
	if resp.Crawler {
		s.logger.Error("crawler article request failed", zap.String("signature", resp.Signature), zap.Error(err))
		page := s.deps.Responder.ErrorPage(http.StatusInternalServerError, "The article could not be loaded right now.")
		if sendErr := page.Send(w); sendErr != nil {
			s.logger.Warn("write error page failed", zap.Error(sendErr))
		}
		return
	}
	s.writeError(w, http.StatusInternalServerError, "Failed to fetch article", err)
}

// statusFor maps layer sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
