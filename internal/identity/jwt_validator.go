package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// Claims are the chat-relevant claims of a site-issued access token. The
// subject is the participant id.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name"`
	Role        string `json:"role"`
}

// JWTValidator validates HMAC-signed access tokens sharing a secret with the
// identity provider.
type JWTValidator struct {
	secret []byte
	issuer string
}

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (v *JWTValidator) Validate(ctx context.Context, credential string) (*Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidCredential)
	}

	role := domain.Role(claims.Role)
	if role != domain.RoleUser && role != domain.RoleAgent {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidCredential, claims.Role)
	}

	return &Identity{
		ParticipantID: claims.Subject,
		DisplayName:   claims.DisplayName,
		Role:          role,
	}, nil
}
