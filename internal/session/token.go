package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken wraps token parsing errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// TokenExpiry reads the exp claim from a bearer token without verifying the
// signature. The upstream backend is the issuer and verifier; the console
// only inspects exp so it can treat an already-expired token as no session
// instead of burning a round trip on a guaranteed 401. A token with no exp
// claim returns the zero time.
func TokenExpiry(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
