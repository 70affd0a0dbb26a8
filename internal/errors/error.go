package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
)

// Category represents the type of error.
type Category string

const (
	CategoryInput     Category = "input"
	CategoryUpdate    Category = "update"
	CategoryReactive  Category = "reactive"
	CategoryLifecycle Category = "lifecycle"
	CategoryObserver  Category = "observer"
	CategoryConfig    Category = "config"
)

// DomkitError is a structured error with a code, suggestion and documentation.
type DomkitError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (input, update, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Key names the lookup key, update key or binding target involved.
	Key string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DomkitError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Key)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DomkitError) Unwrap() error {
	return e.Wrapped
}

// Is matches another DomkitError with the same code, so callers can test
// errors.Is(err, errors.New("E020")).
func (e *DomkitError) Is(target error) bool {
	t, ok := target.(*DomkitError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// LogValue renders the error as a group in structured logs.
func (e *DomkitError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("category", string(e.Category)),
		slog.String("message", e.Message),
	}
	if e.Key != "" {
		attrs = append(attrs, slog.String("key", e.Key))
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	if e.Wrapped != nil {
		attrs = append(attrs, slog.String("cause", e.Wrapped.Error()))
	}
	return slog.GroupValue(attrs...)
}

// WithKey records the key involved.
func (e *DomkitError) WithKey(key string) *DomkitError {
	e.Key = key
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DomkitError) WithSuggestion(s string) *DomkitError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DomkitError) WithDetail(d string) *DomkitError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *DomkitError) Wrap(err error) *DomkitError {
	e.Wrapped = err
	return e
}

// New creates a DomkitError from a registered error code.
func New(code string) *DomkitError {
	template, ok := registry[code]
	if !ok {
		return &DomkitError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DomkitError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new DomkitError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DomkitError {
	return &DomkitError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DomkitError.
func FromError(err error, code string) *DomkitError {
	if err == nil {
		return nil
	}
	var de *DomkitError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// FromPanic converts a recovered panic value into a coded error.
func FromPanic(r any, code string) *DomkitError {
	if err, ok := r.(error); ok {
		return FromError(err, code)
	}
	return New(code).Wrap(fmt.Errorf("panic: %v", r))
}

// Join combines errors, skipping nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
