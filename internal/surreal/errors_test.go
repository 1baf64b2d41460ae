package surreal_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"murmur/internal/core"
	"murmur/internal/surreal"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no record", &surreal.Error{Code: -32000, Message: "No record was returned"}, core.ErrInvalidCredentials},
		{"expired", &surreal.Error{Code: -32000, Message: "The token has expired"}, core.ErrTokenExpired},
		{"other remote", &surreal.Error{Code: -32000, Message: "Permission denied"}, core.ErrUnknown},
		{"transport", errors.New("broken pipe"), core.ErrUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := surreal.Classify(tc.err)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, tc.err)
		})
	}

	require.NoError(t, surreal.Classify(nil))
}
