package shared

// DomainError carries a stable machine-readable code alongside the
// message, so the HTTP layer can map it onto an error response.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a domain error with the given code
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinel errors shared across the domain
var (
	// ErrNotFound covers missing tenants, services and prices alike.
	ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")

	// ErrInvalidInput rejects malformed values before they reach storage.
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")

	// ErrConcurrencyConflict signals a guarded update that matched no
	// rows, usually a collection cursor trying to move backwards.
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
)
