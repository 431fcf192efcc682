// Package httpx holds the JSON response helpers and request decoding shared
// by every handler.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

const (
	HeaderPlatformID = "X-Platform-ID"
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderCompanyID  = "X-Company-ID"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorBody{Error: message})
}

// Fail writes err as a response. Domain errors keep their status and
// message; anything else is logged and reported as a 500.
func Fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, body := Describe(logger, err)
	WriteJSON(w, logger, status, body)
}

// Describe renders err the way Fail would, for responses that report a
// failed step next to ones that already committed.
func Describe(logger *slog.Logger, err error) (int, ErrorBody) {
	if de, ok := domain.AsError(err); ok {
		return de.StatusCode(), ErrorBody{
			Error:   de.Error(),
			Code:    string(de.Kind),
			Details: de.Details,
		}
	}
	logger.Error("request failed", "error", err)
	return http.StatusInternalServerError, ErrorBody{Error: "internal server error"}
}

// Decode reads a JSON body into v. Malformed bodies are a validation error.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validation("invalid request body: %v", err)
	}
	return nil
}

// ActorFromRequest reads the acting user set by the upstream auth layer.
func ActorFromRequest(r *http.Request) (domain.Actor, error) {
	actor := domain.Actor{
		ID:         strings.TrimSpace(r.Header.Get(HeaderUserID)),
		PlatformID: strings.TrimSpace(r.Header.Get(HeaderPlatformID)),
		Role:       domain.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole)))),
		CompanyID:  strings.TrimSpace(r.Header.Get(HeaderCompanyID)),
	}
	if actor.ID == "" || actor.PlatformID == "" {
		return domain.Actor{}, domain.Validation("missing %s or %s header", HeaderUserID, HeaderPlatformID)
	}
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleLogistics, domain.RoleClient:
	default:
		return domain.Actor{}, domain.Validation("unknown role %q", actor.Role)
	}
	return actor, nil
}

// RequireStaff rejects actors that are not ADMIN or LOGISTICS.
func RequireStaff(actor domain.Actor) error {
	if !actor.IsStaff() {
		return domain.Forbidden("role %s cannot perform this operation", actor.Role)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD value as midnight UTC.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, domain.Validation("%s must be a date in YYYY-MM-DD form", field)
	}
	return t, nil
}
