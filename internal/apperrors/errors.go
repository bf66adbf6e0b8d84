package apperrors

import "github.com/ramesius/wez-sonos/internal/soap"

type ErrorCode string

const (
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeDeviceNotFound    ErrorCode = "DEVICE_NOT_FOUND"
	ErrorCodeDeviceTimeout     ErrorCode = "DEVICE_TIMEOUT"
	ErrorCodeDeviceUnreachable ErrorCode = "DEVICE_UNREACHABLE"
	ErrorCodeDeviceRejected    ErrorCode = "DEVICE_REJECTED"
	ErrorCodeDeviceMalformed   ErrorCode = "DEVICE_MALFORMED_RESPONSE"
	ErrorCodeSubscriptionGone  ErrorCode = "SUBSCRIPTION_GONE"
	ErrorCodeAuthTokenExpired  ErrorCode = "AUTH_TOKEN_EXPIRED"
	ErrorCodeAuthTokenInvalid  ErrorCode = "AUTH_TOKEN_INVALID"
)

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (err *AppError) Error() string {
	return err.Message
}

func (err *AppError) ErrorBody() ErrorBody {
	return ErrorBody{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, 400, details)
}

func NewUnauthorizedError(message string, code ...ErrorCode) *AppError {
	errCode := ErrorCodeUnauthorized
	if len(code) > 0 {
		errCode = code[0]
	}
	return NewAppError(errCode, message, 401, nil)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, 500, nil)
}

// FromSoapError maps the SOAP layer's typed errors onto API error codes so
// handlers don't re-interpret transport details.
func FromSoapError(err error) *AppError {
	switch e := err.(type) {
	case *soap.Fault:
		return NewAppError(ErrorCodeDeviceRejected, e.Error(), 502, map[string]any{
			"upnp_code":        e.Code,
			"upnp_description": e.Description,
		})
	case *soap.TransportError:
		if e.Timeout {
			return NewAppError(ErrorCodeDeviceTimeout, e.Error(), 504, nil)
		}
		return NewAppError(ErrorCodeDeviceUnreachable, e.Error(), 502, nil)
	case *soap.MalformedError:
		return NewAppError(ErrorCodeDeviceMalformed, e.Error(), 502, nil)
	}
	return NewInternalError(err.Error())
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("Internal server error")
}
