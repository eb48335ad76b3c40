package domain

import "errors"

// Submission and channel errors. Transient errors are safe to retry with the
// same nonce; the rest are not retried automatically.
var (
	// ErrInvalidCredential is fatal to the channel open attempt.
	ErrInvalidCredential = errors.New("invalid or expired credential")

	// ErrTransient covers timeouts and short store outages. The sender may
	// resubmit the same nonce without risking a duplicate.
	ErrTransient = errors.New("transient failure")

	// ErrStorage means the message was not durably stored and is not
	// considered sent.
	ErrStorage = errors.New("storage failure")

	// ErrEmptyBody, ErrBodyTooLarge and ErrMissingNonce reject a submission
	// before any persistence attempt.
	ErrEmptyBody    = errors.New("message body is empty")
	ErrBodyTooLarge = errors.New("message body exceeds maximum length")
	ErrMissingNonce = errors.New("submission nonce is required")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant of this conversation")
)

// IsValidation reports whether err is a pre-persistence validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrBodyTooLarge) || errors.Is(err, ErrMissingNonce)
}
