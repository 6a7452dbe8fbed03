package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/duochat/internal/logger"
	"github.com/duochat/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the service failure taxonomy onto HTTP status codes.
// Unclassified errors are logged and answered as an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, errDetail(err))
	case errors.Is(err, service.ErrAuth):
		writeError(w, http.StatusUnauthorized, errDetail(err))
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, errDetail(err))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, errDetail(err))
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, errDetail(err))
	default:
		logger.Errorf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errDetail strips the sentinel prefix, leaving the human-readable part.
func errDetail(err error) string {
	s := err.Error()
	if i := strings.Index(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}
