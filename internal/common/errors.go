package common

// Stable error codes surfaced to the staff UI.
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeValidation           = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL"
	CodeInvalidAdvance       = "INVALID_ADVANCE"
	CodeUnsupportedConnector = "UNSUPPORTED_CONNECTOR"
	CodeCatalogUnavailable   = "CATALOG_UNAVAILABLE"
	CodeStaleQuote           = "STALE_QUOTE"
	CodeSelectionOutdated    = "SELECTION_OUTDATED"
)

// AppError carries a stable code and HTTP status alongside the cause.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}
