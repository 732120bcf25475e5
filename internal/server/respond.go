// Package server provides the HTTP server and routing for Fin-Agent.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/sentinel/internal/errkind"
)

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errkind.Wrap(errkind.Invalid, err, "failed to parse request body")
	}
	return nil
}

// errorBody is the JSON shape every failed request responds with.
type errorBody struct {
	Code        string  `json:"code"`
	Detail      string  `json:"detail"`
	Remediation string  `json:"remediation,omitempty"`
	RetryAfter  float64 `json:"retry_after_seconds,omitempty"`
	Estimated   float64 `json:"estimated_seconds,omitempty"`
	MaxAllowed  float64 `json:"max_allowed_seconds,omitempty"`
}

// statusForKind maps the error taxonomy to HTTP status codes.
func statusForKind(kind errkind.Kind) int {
	switch kind {
	case errkind.Invalid, errkind.SandboxPolicy:
		return http.StatusBadRequest
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.Conflict:
		return http.StatusConflict
	case errkind.ReauthRequired:
		return http.StatusUnauthorized
	case errkind.BudgetExceeded, errkind.RateLimited:
		return http.StatusTooManyRequests
	case errkind.SandboxTimeout:
		return http.StatusGatewayTimeout
	case errkind.UpstreamUnavailable:
		return http.StatusBadGateway
	case errkind.SandboxResourceExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body, translating it through the
// errkind taxonomy when possible and falling back to 500 Internal otherwise.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kindErr, ok := errkind.As(err)
	if !ok {
		kindErr = errkind.Wrap(errkind.Internal, err, "unexpected error")
	}

	body := errorBody{
		Code:        string(kindErr.Kind),
		Detail:      kindErr.Message,
		Remediation: kindErr.Remediation,
		RetryAfter:  kindErr.RetryAfterSecs,
		Estimated:   kindErr.EstimatedSecs,
		MaxAllowed:  kindErr.MaxAllowedSecs,
	}

	status := statusForKind(kindErr.Kind)
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, body)
}
