package optimization

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrorKind classifies errors reported to callers before any minimization
// starts.
type ErrorKind int

const (
	// KindUnknown is the zero kind.
	KindUnknown ErrorKind = iota
	// KindConfiguration marks parameter set mismatches, values outside their
	// own limits and inconsistent data.
	KindConfiguration
	// KindDerivativeContract marks wrongly sized gradients or Hessians.
	KindDerivativeContract
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDerivativeContract:
		return "derivative contract"
	default:
		return "unknown"
	}
}

var (
	// ErrConfiguration matches every error of kind KindConfiguration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDerivativeContract matches every error of kind KindDerivativeContract.
	ErrDerivativeContract = errors.New("derivative contract violated")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind classifies the error.
	Kind ErrorKind
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrDerivativeContract:
		return e.Kind == KindDerivativeContract
	}
	return false
}

// Causes returns the individual problems combined into this error.
func (e *Error) Causes() []error {
	if e == nil || e.Err == nil {
		return nil
	}
	return multierr.Errors(e.Err)
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// NewErrorf creates a new optimization error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// ConfigurationError combines causes into a single configuration error.
// It returns nil when no cause is non-nil.
func ConfigurationError(message string, causes ...error) error {
	return kindError(KindConfiguration, message, causes)
}

// DerivativeContractError combines causes into a single derivative contract
// error. It returns nil when no cause is non-nil.
func DerivativeContractError(message string, causes ...error) error {
	return kindError(KindDerivativeContract, message, causes)
}

func kindError(kind ErrorKind, message string, causes []error) error {
	combined := multierr.Combine(causes...)
	if combined == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: combined}
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
