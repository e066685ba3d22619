package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignTestToken mints an HS256 token the Verifier accepts. Test helper only:
// production tokens come from the identity provider.
func SignTestToken(secret, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
