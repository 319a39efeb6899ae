package domain

import "errors"

// Sentinel errors form the error taxonomy. Callers at the transport
// boundary classify failures with errors.Is and map them to HTTP status
// codes / socket error frames.
var (
	// Authentication failures (Token Verifier).
	ErrAuthMissing   = errors.New("auth: bearer token missing")
	ErrAuthMalformed = errors.New("auth: bearer token malformed")
	ErrAuthInvalid   = errors.New("auth: bearer token signature invalid")
	ErrAuthExpired   = errors.New("auth: bearer token expired")

	// Authorization failures.
	ErrNotAuthorized = errors.New("not authorized for this conversation")
	ErrAccessDenied  = errors.New("access denied")

	// Not-found failures.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrUserNotFound         = errors.New("user not found")

	// Validation failures.
	ErrContentInvalid          = errors.New("message content invalid")
	ErrKindInvalid             = errors.New("kind invalid")
	ErrParticipantCountInvalid = errors.New("participant count invalid for conversation kind")
	ErrSelfConversation        = errors.New("cannot create a direct conversation with oneself")
	ErrRoleInvalidForKind      = errors.New("role not permitted for this conversation kind")

	// Lifecycle/window failures (Message Pipeline).
	ErrEditWindowExpired   = errors.New("edit window expired")
	ErrDeleteWindowExpired = errors.New("delete window expired")
	ErrEditForbiddenKind   = errors.New("this message kind cannot be edited")
	ErrAlreadyDeleted      = errors.New("message already deleted")

	// Concurrency/transport failures.
	ErrSlowConsumer = errors.New("subscriber outbound queue full")

	// Store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreConflict    = errors.New("store write conflict")
)
