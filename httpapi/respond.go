package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	medialib "github.com/shoraid/go-medialib"
)

// respondJSON sends data as a JSON response.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError sends {"error": message}.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, map[string]string{"error": message})
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, medialib.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, medialib.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, medialib.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, medialib.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, medialib.ErrIntegrityMismatch):
		return http.StatusConflict
	case errors.Is(err, medialib.ErrInternal), errors.Is(err, medialib.ErrRelocationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Client errors carry
// the error text; server errors are logged and answered generically.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		hlog.FromRequest(r).Info().Err(err).Int("status", status).Msg(msg)
		respondError(w, r, status, err.Error())
		return
	}

	hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg(msg)
	respondError(w, r, status, msg)
}
