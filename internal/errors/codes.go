// Package errors provides structured error handling for archivesearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Corpus and snapshot IO errors
//   - 3XX: Network and deadline errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates snapshot and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network and timeout errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Corpus errors (200-299)
	ErrCodeSnapshotNotFound = "ERR_201_SNAPSHOT_NOT_FOUND"
	ErrCodeSnapshotCorrupt  = "ERR_202_SNAPSHOT_CORRUPT"
	ErrCodeCorpusEmpty      = "ERR_203_CORPUS_EMPTY"
	ErrCodeLockHeld         = "ERR_204_LOCK_HELD"

	// Network errors (300-399)
	ErrCodeSearchTimeout      = "ERR_301_SEARCH_TIMEOUT"
	ErrCodeSuggestUnavailable = "ERR_302_SUGGEST_UNAVAILABLE"
	ErrCodeSuggestBadResponse = "ERR_303_SUGGEST_BAD_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty   = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidLimit = "ERR_403_INVALID_LIMIT"
	ErrCodeInvalidMode  = "ERR_404_INVALID_MODE"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeSearchFailed   = "ERR_502_SEARCH_FAILED"
	ErrCodePoolClosed     = "ERR_503_POOL_CLOSED"
	ErrCodeWorkerFailed   = "ERR_504_WORKER_FAILED"
	ErrCodeTelemetryStore = "ERR_505_TELEMETRY_STORE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	// "ERR_" followed by at least one digit
	if len(code) < 5 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSnapshotCorrupt, ErrCodeLockHeld:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSearchTimeout, ErrCodeSuggestUnavailable:
		return true
	default:
		return false
	}
}
