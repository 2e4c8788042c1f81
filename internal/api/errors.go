// Package api exposes the engine over HTTP. Handlers decode requests,
// call the service layer, and translate error kinds into status codes;
// no authorization decisions are made here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/middleware"
)

// StatusClientClosedRequest is the nginx convention for requests the
// client abandoned before a response was written.
const StatusClientClosedRequest = 499

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// kindOf maps an error to its stable kind token. Unrecognized errors
// are INTERNAL; their text is never echoed to the client.
func kindOf(err error) string {
	var (
		unknownPermission *domain.UnknownPermissionError
		unknownRole       *domain.UnknownRoleError
		unknownPrincipal  *domain.UnknownPrincipalError
		invalidMembership *domain.InvalidMembershipError
		invalidCursor     *domain.InvalidCursorError
		cancelled         *domain.CancelledError
		storeUnavailable  *domain.StoreUnavailableError
		validation        *domain.ValidationError
		conflict          *domain.ConflictError
		notFound          *domain.NotFoundError
	)
	switch {
	case errors.As(err, &unknownPermission):
		return "UNKNOWN_PERMISSION"
	case errors.As(err, &unknownRole):
		return "UNKNOWN_ROLE"
	case errors.As(err, &unknownPrincipal):
		return "UNKNOWN_PRINCIPAL"
	case errors.As(err, &invalidMembership):
		return "INVALID_MEMBERSHIP"
	case errors.As(err, &invalidCursor):
		return "INVALID_CURSOR"
	case errors.As(err, &cancelled):
		return "CANCELLED"
	case errors.As(err, &storeUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.As(err, &validation):
		return "VALIDATION"
	case errors.As(err, &conflict):
		return "CONFLICT"
	case errors.As(err, &notFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// httpStatus translates a kind into a status code. onDecision flips
// UNKNOWN_PRINCIPAL from a 400 (admin caller passed a bad id) to a 404
// (the subject of a decision does not exist).
func httpStatus(kind string, onDecision bool) int {
	switch kind {
	case "UNKNOWN_PRINCIPAL":
		if onDecision {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case "UNKNOWN_PERMISSION", "UNKNOWN_ROLE", "INVALID_MEMBERSHIP", "INVALID_CURSOR", "VALIDATION":
		return http.StatusBadRequest
	case "CONFLICT":
		return http.StatusConflict
	case "NOT_FOUND":
		return http.StatusNotFound
	case "CANCELLED":
		return StatusClientClosedRequest
	case "STORE_UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, onDecision bool) {
	kind := kindOf(err)
	status := httpStatus(kind, onDecision)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"kind", kind,
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Kind: kind, Message: msg}})
}

// respondError is the admin flavor: UNKNOWN_PRINCIPAL means the caller
// sent a principal id that does not exist, which is their mistake.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err, false)
}

// respondDecisionError is used by check, capability, trace, and listing
// endpoints where the principal is the subject being decided about.
func (h *Handler) respondDecisionError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, err, true)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}
