package imagebroker

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes broker failures for programmatic handling.
//
// Code ranges:
//   - E1xxx: validation errors (malformed request input)
//   - E2xxx: configuration errors (bad or missing settings)
//   - E3xxx: API errors (provider call failures)
//   - E4xxx: processing errors (image handling failures)
//   - E5xxx: file errors (local file operations)
type ErrorCode string

const (
	CodeValidationEmptyInput    ErrorCode = "E1001"
	CodeValidationInvalidFormat ErrorCode = "E1002"
	CodeValidationSizeExceeded  ErrorCode = "E1003"
	CodeValidationInvalidMode   ErrorCode = "E1004"
	CodeValidationInvalidPath   ErrorCode = "E1005"
	CodeValidationFileCount     ErrorCode = "E1006"

	CodeConfigMissingAPIKey   ErrorCode = "E2001"
	CodeConfigInvalidValue    ErrorCode = "E2002"
	CodeConfigMissingRequired ErrorCode = "E2003"

	CodeAPIConnectionFailed ErrorCode = "E3001"
	CodeAPIRateLimited      ErrorCode = "E3002"
	CodeAPIAuthFailed       ErrorCode = "E3003"
	CodeAPIInvalidResponse  ErrorCode = "E3004"
	CodeAPITimeout          ErrorCode = "E3005"

	CodeProcessingImageFailed     ErrorCode = "E4001"
	CodeProcessingThumbnailFailed ErrorCode = "E4002"
	CodeProcessingEncodingFailed  ErrorCode = "E4003"
	CodeProcessingStorageFailed   ErrorCode = "E4004"

	CodeFileNotFound     ErrorCode = "E5001"
	CodeFileReadFailed   ErrorCode = "E5002"
	CodeFileWriteFailed  ErrorCode = "E5003"
	CodeFileInvalidType  ErrorCode = "E5004"
	CodeFileAccessDenied ErrorCode = "E5005"
)

// ErrorKind is the broad failure category an Error belongs to.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConfiguration
	KindAPI
	KindProcessing
	KindFile
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindAPI:
		return "api"
	case KindProcessing:
		return "processing"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// maxContextValueLen bounds the size of values stored in error context.
const maxContextValueLen = 100

// Error is the domain error type for the broker. It carries a machine-readable
// code, a human message, optional structured context, and a wrapped cause.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string

	// Context holds structured details (field names, truncated values).
	Context map[string]any

	// Field and Value identify the offending input for validation errors.
	// Value is kept unmodified here; the copy in Context is truncated.
	Field string
	Value any

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext attaches a structured detail to the error and returns it.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ToMap serializes the error for structured responses.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"kind":    e.Kind.String(),
		"message": e.Message,
	}
	if e.Code != "" {
		m["code"] = string(e.Code)
	}
	if len(e.Context) > 0 {
		m["context"] = e.Context
	}
	if e.Err != nil {
		m["cause"] = e.Err.Error()
	}
	return m
}

func newError(kind ErrorKind, code ErrorCode, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// NewValidationError creates a validation-kind error. The offending value is
// stored unmodified on the error and truncated to 100 characters in the
// context map to bound error-payload size.
func NewValidationError(message string, code ErrorCode, field string, value any) *Error {
	e := newError(KindValidation, code, message, nil)
	e.Field = field
	e.Value = value
	if field != "" {
		e.WithContext("field", field)
	}
	if value != nil {
		e.WithContext("value", truncateValue(value))
	}
	return e
}

// NewConfigurationError creates a configuration-kind error.
func NewConfigurationError(message string, code ErrorCode) *Error {
	return newError(KindConfiguration, code, message, nil)
}

// NewAPIError creates a provider-API-kind error wrapping cause.
func NewAPIError(message string, code ErrorCode, cause error) *Error {
	return newError(KindAPI, code, message, cause)
}

// NewProcessingError creates a processing-kind error wrapping cause.
func NewProcessingError(message string, code ErrorCode, cause error) *Error {
	return newError(KindProcessing, code, message, cause)
}

// NewFileError creates a file-kind error for path, wrapping cause.
func NewFileError(message string, code ErrorCode, path string, cause error) *Error {
	e := newError(KindFile, code, message, cause)
	e.Field = "path"
	e.Value = path
	return e.WithContext("path", truncateValue(path))
}

func truncateValue(value any) string {
	s := fmt.Sprint(value)
	if len(s) > maxContextValueLen {
		return s[:maxContextValueLen]
	}
	return s
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsValidationError reports whether err is a validation-kind Error.
func IsValidationError(err error) bool { return isKind(err, KindValidation) }

// IsConfigurationError reports whether err is a configuration-kind Error.
func IsConfigurationError(err error) bool { return isKind(err, KindConfiguration) }

// IsAPIError reports whether err is a provider-API-kind Error.
func IsAPIError(err error) bool { return isKind(err, KindAPI) }

// IsProcessingError reports whether err is a processing-kind Error.
func IsProcessingError(err error) bool { return isKind(err, KindProcessing) }

// IsFileError reports whether err is a file-kind Error.
func IsFileError(err error) bool { return isKind(err, KindFile) }

// ErrorCodeOf returns the ErrorCode carried by err, or "" when err is not an Error.
func ErrorCodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
