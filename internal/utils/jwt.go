// Package utils mints access tokens for the requester identities the API
// accepts.  Production tokens come from an external identity provider;
// these helpers serve tests and local tooling.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 JWT whose "sub" claim is the requester
// reference and whose "role" claim is role.  A non-positive ttl yields an
// already expired token.
func NewAccessToken(secret, requester, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  requester,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
