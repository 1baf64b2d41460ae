package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"murmur/internal/core"
)

// TokenExpiry reads the exp claim without verifying the signature. ok is false when the token has no exp.
// The server remains the authority on validity, this only avoids a round trip for tokens that are
// certainly dead.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}

	date, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return date.Time, true, nil
}

// Expired reports whether the token carries an exp claim in the past.
func Expired(token string, now time.Time) bool {
	exp, ok, err := TokenExpiry(token)
	return err == nil && ok && !now.Before(exp)
}
