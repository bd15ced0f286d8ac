package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/sirupsen/logrus"
)

const (
	LogFieldRequestID   = "requestId"
	LogFieldHTTPRequest = "httpRequest"
)

func (s *Server) setContentTypeJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (s *Server) writeJSON(w http.ResponseWriter, d any) {
	s.setContentTypeJSON(w)
	err := json.NewEncoder(w).Encode(d)
	if err != nil {
		s.log.Error(err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, statusCode int, err error, alternativeMessage ...string) {
	errMsg := err.Error()
	entry := s.log.WithFields(logrus.Fields{
		LogFieldRequestID: middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: map[string]any{
			"requestMethod": r.Method,
			"requestUrl":    r.URL.EscapedPath(),
			"status":        statusCode,
		},
	})
	if statusCode >= http.StatusInternalServerError {
		entry.Errorf("error: %s", errMsg)
	} else {
		entry.Warnf("error: %s", errMsg)
	}

	s.setContentTypeJSON(w)
	w.WriteHeader(statusCode)

	if len(alternativeMessage) > 0 {
		errMsg = strings.Join(alternativeMessage, " ")
	}
	s.writeJSON(w, map[string]string{"error": errMsg})
}

// statusCodeForError maps the error kinds of a resolution to a status code.
func statusCodeForError(err error) int {
	switch {
	case errors.Is(err, source.ErrUnknownSource),
		errors.Is(err, source.ErrNoVersionFound),
		errors.Is(err, source.ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, source.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger(r *http.Request) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		LogFieldRequestID: middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: map[string]any{
			"requestMethod": r.Method,
			"requestUrl":    r.URL.EscapedPath(),
		},
	})
}
