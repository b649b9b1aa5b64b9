package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an underlying error
	cause := errors.New("boom")

	// When: wrapping it
	err := New(ErrCodeWorkerFailed, "worker panicked", cause)

	// Then: the chain reaches the cause
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestSearchError_Error_Format(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigInvalid, "bad port", "[ERR_102_CONFIG_INVALID] bad port"},
		{"snapshot", ErrCodeSnapshotNotFound, "a.json missing", "[ERR_201_SNAPSHOT_NOT_FOUND] a.json missing"},
		{"timeout", ErrCodeSearchTimeout, "deadline", "[ERR_301_SEARCH_TIMEOUT] deadline"},
		{"worker", ErrCodeWorkerFailed, "panic", "[ERR_504_WORKER_FAILED] panic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestSearchError_Is_MatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeWorkerFailed, "", nil)
	err := fmt.Errorf("assisted search: %w", New(ErrCodeWorkerFailed, "exit 1", nil))

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, New(ErrCodeSearchTimeout, "", nil)))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigNotFound, CategoryConfig, SeverityError, false},
		{ErrCodeSnapshotCorrupt, CategoryIO, SeverityFatal, false},
		{ErrCodeSearchTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeSuggestUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeQueryEmpty, CategoryValidation, SeverityError, false},
		{ErrCodeWorkerFailed, CategoryInternal, SeverityError, false},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeSearchTimeout, "slow", nil))

	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrCodeSearchTimeout, GetCode(err))
	assert.Equal(t, CategoryNetwork, GetCategory(err))

	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeSnapshotNotFound, "missing", nil).
		WithDetail("path", "/tmp/a.json").
		WithSuggestion("check corpus.sources")

	assert.Equal(t, "/tmp/a.json", err.Details["path"])
	assert.Equal(t, "check corpus.sources", err.Suggestion)
}
