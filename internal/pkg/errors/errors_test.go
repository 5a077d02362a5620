package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteServiceErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("embed query: %w", NewRemoteServiceError("embedding", context.DeadlineExceeded))
	require.True(t, IsRemote(err))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.False(t, IsStorage(err))

	var remote *RemoteServiceError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "embedding", remote.Service)
}

func TestStorageErrorIs(t *testing.T) {
	err := NewStorageError("upsert", errors.New("disk full"))
	require.True(t, IsStorage(err))
	require.Contains(t, err.Error(), "disk full")
}

func TestValidationErrorMatchesInvalid(t *testing.T) {
	err := NewValidationError("", "id", "is required")
	require.True(t, errors.Is(err, ErrValidation))
	require.True(t, errors.Is(err, ErrInvalid))
	require.False(t, IsRemote(err))
}
