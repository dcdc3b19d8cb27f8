package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		wantCode      string
		wantRetries   int
		wantRetryable bool
	}{
		{"invalid input", NewInvalidInputError("observations missing"), "INVALID_INPUT", 0, false},
		{"profile not found", NewProfileNotFoundError("u-1"), "PROFILE_NOT_FOUND", 0, false},
		{"profile lookup", NewProfileLookupFailedError(fmt.Errorf("conn reset")), "PROFILE_LOOKUP_FAILED", 3, true},
		{"augmentation down", NewAugmentationUnavailableError(fmt.Errorf("dial tcp")), "AUGMENTATION_UNAVAILABLE", 1, true},
		{"index write", NewIndexWriteFailedError("menu-item-analyses", fmt.Errorf("503")), "INDEX_WRITE_FAILED", 3, true},
		{"internal", NewInternalError(fmt.Errorf("nil map")), "INTERNAL_ERROR", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, b.Code)
			assert.Equal(t, tt.wantRetries, b.Retries)
			assert.Equal(t, tt.wantRetryable, b.Retryable)

			vars := b.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	err := NewInvalidInputError("bad").WithMetadata("field", "menuItems")
	vars := ConvertToBPMNError(err).ToErrorVariables()
	assert.Equal(t, "menuItems", vars["field"])
}

func TestNormalize(t *testing.T) {
	cause := stderrors.New("socket closed")
	wrapped := fmt.Errorf("lookup: %w", NewProfileLookupFailedError(cause))

	got := Normalize(wrapped)
	assert.Equal(t, ErrCodeProfileLookupFailed, got.Code)
	assert.ErrorIs(t, got, cause)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestAsStandardError(t *testing.T) {
	_, ok := AsStandardError(stderrors.New("x"))
	assert.False(t, ok)

	se, ok := AsStandardError(NewCacheUnavailableError(stderrors.New("redis down")))
	require.True(t, ok)
	assert.True(t, se.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "PROFILE", GetErrorCategory(ErrCodeProfileNotFound))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeAugmentationInvalidResponse))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexWriteFailed))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeCacheUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidInput))
}
