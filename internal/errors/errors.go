// Package errors provides the API errors of the fitting service.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/copyleftdev/mnfit/internal/optimization"
)

// Code classifies API errors for clients.
type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeDerivativeContract Code = "derivative_contract"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal"
)

var statusOf = map[Code]int{
	CodeInvalidRequest:     http.StatusBadRequest,
	CodeDerivativeContract: http.StatusUnprocessableEntity,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeInternal:           http.StatusInternalServerError,
}

// Error represents an API error with context and stack trace.
type Error struct {
	Code Code
	// The underlying error that was returned
	Err error
	// A human-readable message describing the error
	Message string
	// Details lists individual problems, e.g. one per invalid parameter
	Details []string
	// The operation that was being performed when the error occurred
	Operation string
	Stack     []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Operation != "" {
		b.WriteString(" (operation=")
		b.WriteString(e.Operation)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status of the error.
func (e *Error) Status() int {
	if s, ok := statusOf[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithDetails appends problem descriptions.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// New creates a new error with a code and a message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Stack: getStackTrace()}
}

// Errorf creates a new error with a formatted message.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: getStackTrace()}
}

// Wrap turns err into an API error. Errors of the optimization packages
// keep their classification: configuration problems become invalid
// requests, derivative contract violations derivative contract errors.
// Everything else is internal. Wrap returns nil for a nil err.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var api *Error
	if stderrors.As(err, &api) {
		return api
	}

	e := &Error{Code: CodeInternal, Err: err, Message: msg, Stack: getStackTrace()}
	switch {
	case stderrors.Is(err, optimization.ErrConfiguration):
		e.Code = CodeInvalidRequest
	case stderrors.Is(err, optimization.ErrDerivativeContract):
		e.Code = CodeDerivativeContract
	}
	if oe, ok := optimization.IsOptimizationError(err); ok {
		for _, cause := range oe.Causes() {
			e.Details = append(e.Details, cause.Error())
		}
	}
	return e
}

// body is the JSON representation of an Error.
type body struct {
	Error struct {
		Code    Code     `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteJSON writes err with its HTTP status.
func WriteJSON(w http.ResponseWriter, err error) {
	e := Wrap(err, "")
	if e == nil {
		e = New(CodeInternal, "unknown error")
	}
	var b body
	b.Error.Code = e.Code
	b.Error.Message = e.Message
	if b.Error.Message == "" && e.Err != nil {
		b.Error.Message = e.Err.Error()
	}
	b.Error.Details = e.Details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(b)
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip runtime.Callers, getStackTrace and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}
