package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// FormError represents a pipeline failure with enough context to report it to the user
type FormError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Field       string    `json:"field,omitempty"`
	Context     string    `json:"context,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of failures the pipeline can report
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeAssetLoad
	ErrorTypeFormat
	ErrorTypeSizeLimit
	ErrorTypeTransport
	ErrorTypeParse
	ErrorTypeCancelled
)

// Error implements the error interface
func (e *FormError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), msg, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), msg)
}

// Unwrap returns the underlying cause, if any
func (e *FormError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeAssetLoad:
		return "ASSET_LOAD"
	case ErrorTypeFormat:
		return "FORMAT"
	case ErrorTypeSizeLimit:
		return "SIZE_LIMIT"
	case ErrorTypeTransport:
		return "TRANSPORT"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether the user can fix the cause and retry
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeValidation, ErrorTypeSizeLimit, ErrorTypeTransport, ErrorTypeCancelled:
		return true
	case ErrorTypeFormat:
		return true // a new signature fixes it
	case ErrorTypeAssetLoad, ErrorTypeParse:
		return false
	default:
		return false
	}
}

// New creates a new FormError
func New(errorType ErrorType, message string) *FormError {
	return &FormError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Newf creates a new FormError with a formatted message
func Newf(errorType ErrorType, format string, args ...any) *FormError {
	return New(errorType, fmt.Sprintf(format, args...))
}

// Wrap wraps err as a FormError of the given type
func Wrap(errorType ErrorType, message string, err error) *FormError {
	fe := New(errorType, message)
	fe.Err = err
	if err != nil {
		fe.Context = err.Error()
	}
	return fe
}

// WithField attaches the offending field key
func (e *FormError) WithField(key string) *FormError {
	e.Field = key
	return e
}

// WithContext adds context to an existing FormError
func (e *FormError) WithContext(context string) *FormError {
	e.Context = context
	return e
}

// TypeOf returns the ErrorType of the first FormError in err's chain
func TypeOf(err error) ErrorType {
	var fe *FormError
	if stderrors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries a FormError of type t
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
