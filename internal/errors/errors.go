package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error_code member of a problem.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidJSON          = "INVALID_JSON"
	CodeEmptyBody            = "EMPTY_BODY"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeMissingContentType   = "MISSING_CONTENT_TYPE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidReport        = "INVALID_REPORT"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// codeTypes maps an error code to its problem type. Unlisted codes are
// internal errors.
var codeTypes = map[string]string{
	CodeInvalidRequest:       TypeValidation,
	CodeInvalidJSON:          TypeValidation,
	CodeEmptyBody:            TypeValidation,
	CodeValidationFailed:     TypeValidation,
	CodeMissingContentType:   TypeValidation,
	CodeUnsupportedMediaType: TypeUnsupportedMedia,
	CodeInvalidReport:        TypeInvalidReport,
	CodeNotFound:             TypeNotFound,
	CodeUnauthorized:         TypeUnauthorized,
	CodeRateLimited:          TypeRateLimit,
	CodePayloadTooLarge:      TypePayloadTooLarge,
	CodeServiceUnavailable:   TypeServiceDown,
}

// APIError is an error that already knows its HTTP status and code.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of a VALIDATION_FAILED error.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

var (
	ErrUnauthorized       = New(http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
	ErrInvalidToken       = New(http.StatusUnauthorized, CodeUnauthorized, "Invalid token")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
	ErrEmptyBody          = New(http.StatusBadRequest, CodeEmptyBody, "Request body is required")
	ErrMissingContentType = New(http.StatusBadRequest, CodeMissingContentType, "Content-Type header is required")
)

func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

func InvalidJSON(err error) *APIError {
	return New(http.StatusBadRequest, CodeInvalidJSON, "Request body contains invalid JSON: "+err.Error())
}

func PayloadTooLarge(limit int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
		"Request body exceeds maximum allowed size", map[string]interface{}{"max_size": limit})
}

func UnsupportedMediaType(contentType string, allowed []string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported content type",
		map[string]interface{}{"content_type": contentType, "allowed": allowed})
}

func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errors})
}

// InvalidReport reports a well-formed request carrying an unusable report.
// messages are the report validator's findings.
func InvalidReport(messages []string) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, CodeInvalidReport, "Report data is invalid", messages)
}
