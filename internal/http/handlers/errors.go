package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, not
// on messages, which are user-facing notice text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"

	// Written by middleware, listed here so the set is complete.
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"

	// Chat pipeline
	ErrCodeCompletionFailed     = "completion_failed"     // provider failed before any reply text
	ErrCodeStoreUnavailable     = "store_unavailable"     // database unreachable or failing
	ErrCodeConfirmationRequired = "confirmation_required" // DELETE /threads/:id without confirm=true
	ErrCodePayloadTooLarge      = "payload_too_large"     // upload above MAX_UPLOAD_BYTES
)
