package core

import "errors"

var (
	// ErrUnauthenticated means there is no stored session.
	ErrUnauthenticated = errors.New("user is not authenticated")
	// ErrTokenExpired means the stored token was rejected as expired.
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAuth               = errors.New("failed to authenticate")
	ErrUnknown            = errors.New("unknown error")

	ErrNotFound   = errors.New("not found")
	ErrNoSession  = errors.New("no session stored")
	ErrRedirected = errors.New("redirected to login")

	ErrInvalidReactionKind = errors.New("invalid reaction kind")
)

// IsLoginRequired reports whether err should send the user to the login entry point.
func IsLoginRequired(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrRedirected)
}
