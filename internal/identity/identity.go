// Package identity verifies bearer tokens issued by the external identity
// provider and exposes the resolved caller to handlers. Tokens are never
// issued here.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	localsUserID   = "user_id"
	localsUserName = "user_name"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Name   string
}

// Claims is the token payload. The subject carries the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the caller it identifies.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: sub, Name: strings.TrimSpace(claims.Name)}, nil
}

// Store attaches the caller to the request.
func Store(c *fiber.Ctx, id Identity) {
	c.Locals(localsUserID, id.UserID)
	c.Locals(localsUserName, id.Name)
}

// FromLocals returns the caller attached by the auth middleware.
func FromLocals(c *fiber.Ctx) (Identity, bool) {
	uid, _ := c.Locals(localsUserID).(string)
	if uid == "" {
		return Identity{}, false
	}
	name, _ := c.Locals(localsUserName).(string)
	return Identity{UserID: uid, Name: name}, true
}
