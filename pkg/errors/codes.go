package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"
)

// Scope resolution error codes.
const (
	// ErrCodeInvalidScope marks a malformed or empty scope definition.
	// User-correctable; the message is surfaced verbatim.
	ErrCodeInvalidScope ErrorCode = "SCOPE_001"

	// ErrCodeScopeTooLarge marks a resolved scope whose citation volume
	// exceeds the processing cap. The message carries the cap value so the
	// caller can narrow the scope.
	ErrCodeScopeTooLarge ErrorCode = "SCOPE_002"
)

// Upstream (citation graph accessor) error codes.
const (
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_001"
	ErrCodeUpstreamError   ErrorCode = "UPSTREAM_002"
)

// Calibration error codes.
const (
	// ErrCodeCalibrationUnavailable marks a missing corpus calibration
	// statistic. Scoring degrades and flags results as uncalibrated;
	// this code never aborts a request.
	ErrCodeCalibrationUnavailable ErrorCode = "CAL_001"
)

// Export error codes.
const (
	ErrCodeExportStoreFailed ErrorCode = "EXPORT_001"
)

// Aliases kept for call-site brevity.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidScope:  http.StatusBadRequest,
	ErrCodeScopeTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUpstreamTimeout: http.StatusGatewayTimeout,
	ErrCodeUpstreamError:   http.StatusBadGateway,

	ErrCodeCalibrationUnavailable: http.StatusOK,

	ErrCodeExportStoreFailed: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default human-readable messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidScope:  "invalid scope definition",
	ErrCodeScopeTooLarge: "resolved scope exceeds processing cap",

	ErrCodeUpstreamTimeout: "citation graph accessor timed out",
	ErrCodeUpstreamError:   "citation graph accessor failed",

	ErrCodeCalibrationUnavailable: "corpus calibration statistic unavailable",

	ErrCodeExportStoreFailed: "failed to store export snapshot",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
