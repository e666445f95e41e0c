package dataset

import "fmt"

// ============================================================================
// DATASET ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.

const (
	codeInternal    = "internal"
	codeInvalid     = "invalid"
	codeNotFound    = "not_found"
	codeUnavailable = "unavailable"
)

// ============================================================================
// DATASET ERROR TYPE
// ============================================================================

// DatasetError represents a dataset-specific error with a code and message.
type DatasetError struct {
	Code    string
	Message string
}

func (e *DatasetError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *DatasetError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *DatasetError) ErrorMessage() string {
	return e.Message
}

func newDatasetError(code, message string) *DatasetError {
	return &DatasetError{Code: code, Message: message}
}

// ============================================================================
// DATASET DOMAIN ERRORS
// ============================================================================

var (
	// ErrNotFound is returned when no record exists for a country code.
	ErrNotFound = newDatasetError(codeNotFound, "dataset record not found")

	// ErrInvalidCode is returned for codes that are not two or three letters.
	ErrInvalidCode = newDatasetError(codeInvalid, "invalid country code")

	// ErrFetchFailed is returned when the remote dataset cannot be downloaded.
	ErrFetchFailed = newDatasetError(codeUnavailable, "dataset fetch failed")

	// ErrNoBaseURL is returned when a fetcher is built without an endpoint.
	ErrNoBaseURL = newDatasetError(codeInvalid, "dataset base URL is required")

	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = newDatasetError(codeInternal, "corrupt dataset record")
)

// ErrUnknownSource creates an error for unknown dataset sources.
func ErrUnknownSource(source string) error {
	return &DatasetError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("unknown dataset source: %s", source),
	}
}

// errCorrupt reports a stored record that cannot be decoded.
func errCorrupt(code string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, code, err)
}
