package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatcore/internal/domain"
)

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error to its HTTP status and writes it as
// {"error": "..."}.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthMissing),
		errors.Is(err, domain.ErrAuthMalformed),
		errors.Is(err, domain.ErrAuthInvalid),
		errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrContentInvalid),
		errors.Is(err, domain.ErrKindInvalid),
		errors.Is(err, domain.ErrParticipantCountInvalid),
		errors.Is(err, domain.ErrSelfConversation),
		errors.Is(err, domain.ErrRoleInvalidForKind),
		errors.Is(err, domain.ErrEditWindowExpired),
		errors.Is(err, domain.ErrDeleteWindowExpired),
		errors.Is(err, domain.ErrEditForbiddenKind),
		errors.Is(err, domain.ErrAlreadyDeleted):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
