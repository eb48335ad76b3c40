package identity

import (
	"context"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// Identity is the verified result of credential validation.
type Identity struct {
	ParticipantID string
	DisplayName   string
	Role          domain.Role
}

// Validator checks a bearer credential issued by the site's identity provider.
// Implementations return domain.ErrInvalidCredential for anything that should
// be fatal to the channel open attempt; validation is never retried here.
type Validator interface {
	Validate(ctx context.Context, credential string) (*Identity, error)
}
