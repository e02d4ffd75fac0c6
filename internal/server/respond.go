package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/metrics"
)

var (
	errMissingToken      = fmt.Errorf("missing bearer token: %w", apperr.ErrUnauthorized)
	errBadBody           = apperr.Invalid("", "invalid request body")
	errOnboardingPending = fmt.Errorf("first login setup must be completed: %w", apperr.ErrForbidden)
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with a single user-facing message
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message
	}
	if code == http.StatusInternalServerError {
		metrics.RecordError("http")
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		msg = "internal server error"
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decode reads a JSON body into v
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}
