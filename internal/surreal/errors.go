package surreal

import (
	"errors"
	"fmt"
	"strings"

	"murmur/internal/core"
)

var (
	ErrClosed          = errors.New("connection closed")
	ErrNoResult        = errors.New("statement result missing")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// StatementErrorCode is used for errors reported by a single statement of a query.
const StatementErrorCode = -1

// Error is an error reported by the database, either by the RPC layer, by the HTTP API or by a statement.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("surreal error %d: %s", e.Code, e.Message)
}

// The database reports these conditions only as free text. Classify is the single place that knows
// the wording; nothing else in the code base matches on messages.
const (
	msgNoRecordReturned = "no record was returned"
	msgTokenExpired     = "token has expired"
)

// Classify maps an error of the database into the core taxonomy: ErrInvalidCredentials, ErrTokenExpired
// or ErrUnknown. The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *Error
	if !errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}

	msg := strings.ToLower(dbErr.Message)
	switch {
	case strings.Contains(msg, msgNoRecordReturned):
		return fmt.Errorf("%w: %w", core.ErrInvalidCredentials, err)
	case strings.Contains(msg, msgTokenExpired):
		return fmt.Errorf("%w: %w", core.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
}
