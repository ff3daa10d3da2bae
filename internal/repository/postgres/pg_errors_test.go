package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serializationErr() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("tx: %w", serializationErr()), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRunWithRetry_RetriesSerializationFailure(t *testing.T) {
	attempts := 0

	err := runWithRetry(func() error {
		attempts++
		if attempts == 1 {
			return serializationErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRunWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0

	err := runWithRetry(func() error {
		attempts++
		return serializationErr()
	})

	assert.True(t, IsRetryable(err))
	assert.Equal(t, maxTxRetries, attempts)
}

func TestRunWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0

	err := runWithRetry(func() error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
