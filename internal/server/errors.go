package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// errorEnvelope is the uniform {error:{code,message,correlationId}} body
// spec §7 requires for every 4xx/5xx response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// writeJSON encodes v as the response body, logging (never panicking) if
// encoding fails partway through — matching the teacher's handler idiom.
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError maps the taxonomy in internal/domain/errors.go to an HTTP
// status and a {code,message,correlationId} body via a type switch, never
// by matching on Error() strings (spec §7).
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, code, message := classify(err)
	writeJSON(w, log, status, errorEnvelope{Error: errorBody{
		Code: code, Message: message, CorrelationID: correlationID(r.Context()),
	}})
}

func classify(err error) (status int, code, message string) {
	var authErr *domain.AuthError
	var rateLimitErr *domain.RateLimitError
	var transientErr *domain.TransientError
	var configErr *domain.ConfigError
	var plannerErr *domain.PlannerError
	var windowErr *domain.WindowTooWideError
	var tokenErr *domain.TokenRefreshFailed

	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "AUTH_ERROR", authErr.Error()
	case errors.As(err, &rateLimitErr):
		return http.StatusTooManyRequests, "RATE_LIMITED", rateLimitErr.Error()
	case errors.As(err, &transientErr):
		return http.StatusBadGateway, "TRANSIENT", transientErr.Error()
	case errors.As(err, &configErr):
		return http.StatusBadRequest, string(configErr.Code), configErr.Message
	case errors.As(err, &plannerErr):
		return http.StatusUnprocessableEntity, "PLANNER_ERROR", plannerErr.Message
	case errors.As(err, &windowErr):
		return http.StatusInternalServerError, "WINDOW_TOO_WIDE", windowErr.Error()
	case errors.As(err, &tokenErr):
		return http.StatusBadGateway, "TOKEN_REFRESH_FAILED", tokenErr.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", err.Error()
	}
}
