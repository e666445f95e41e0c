package address

// ============================================================================
// ADDRESS ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.

const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
	codeNotFound = "not_found"
)

// ============================================================================
// ADDRESS ERROR TYPE
// ============================================================================

// AddressError represents a formatting error with a code and message.
type AddressError struct {
	Code    string
	Message string
}

func (e *AddressError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *AddressError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *AddressError) ErrorMessage() string {
	return e.Message
}

func newAddressError(code, message string) *AddressError {
	return &AddressError{Code: code, Message: message}
}

// ============================================================================
// ADDRESS DOMAIN ERRORS
// ============================================================================

var (
	// ErrUnknownLocale is returned when no schema data exists for a country code.
	ErrUnknownLocale = newAddressError(codeNotFound, "unknown locale")

	// ErrNoTemplate is returned when formatting without an active template.
	ErrNoTemplate = newAddressError(codeInvalid, "no address template selected")

	// ErrNoSchema is returned when postal operations run before a country is selected.
	ErrNoSchema = newAddressError(codeInvalid, "no country selected")

	// ErrUnresolvedPlaceholder is returned when a template references a letter
	// with no field binding.
	ErrUnresolvedPlaceholder = newAddressError(codeInternal, "unresolved template placeholder")

	// ErrInvalidPattern is returned when a schema's postal pattern does not compile.
	ErrInvalidPattern = newAddressError(codeInternal, "invalid postal code pattern")
)
