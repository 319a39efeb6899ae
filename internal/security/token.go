package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"chatcore/internal/domain"
)

// TokenVerifier validates bearer tokens issued by the external identity
// provider. It never issues tokens itself — this system is
// never the credential owner.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates tokenStr, returning the subject user ID
// extracted from the "sub", "id", or "userId" claim, whichever is present.
// Errors are classified: AuthMalformed for tokens that fail to parse,
// AuthInvalid for signature/claim failures, AuthExpired for an expired
// exp claim.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return "", domain.ErrAuthMissing
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrAuthExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return "", fmt.Errorf("%w: %v", domain.ErrAuthMalformed, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
	}
	if !token.Valid {
		return "", domain.ErrAuthInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unreadable claims", domain.ErrAuthMalformed)
	}

	for _, key := range []string{"sub", "id", "userId"} {
		if raw, ok := claims[key]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no subject claim present", domain.ErrAuthInvalid)
}
