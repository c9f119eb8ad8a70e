// Package errors provides categorised, component-tagged errors with optional
// Sentry reporting. It re-exports the standard helpers so callers only need
// to import this package.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// Category classifies an error for handling and reporting.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryConflict      Category = "conflict"
	CategoryDatabase      Category = "database"
	CategoryNetwork       Category = "network"
	CategoryProvider      Category = "provider"
	CategoryConfiguration Category = "configuration"
	CategoryInternal      Category = "internal"
)

// EnhancedError carries the originating component, a category and free-form
// context alongside the wrapped error.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// GetComponent returns the component that produced the error.
func (e *EnhancedError) GetComponent() string { return e.component }

// GetCategory returns the error category.
func (e *EnhancedError) GetCategory() Category { return e.category }

// GetContext returns a copy of the attached context.
func (e *EnhancedError) GetContext() map[string]any {
	return maps.Clone(e.context)
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts a builder around a plain message.
func New(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: stderrors.New(msg)}
}

// Newf starts a builder around a formatted message. %w verbs wrap as usual.
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...)}
}

// Wrap starts a builder around an existing error.
func Wrap(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

func (b *ErrorBuilder) Category(category Category) *ErrorBuilder {
	b.category = category
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalises the error and hands it to the reporter when one is active.
func (b *ErrorBuilder) Build() *EnhancedError {
	category := b.category
	if category == "" {
		category = CategoryInternal
	}
	ee := &EnhancedError{
		Err:       b.err,
		component: b.component,
		category:  category,
		context:   b.context,
	}
	report(ee)
	return ee
}

// NewStd returns a plain error, for sentinel values.
func NewStd(msg string) error { return stderrors.New(msg) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// IsCategory reports whether any EnhancedError in err's chain has the category.
func IsCategory(err error, category Category) bool {
	var ee *EnhancedError
	if !stderrors.As(err, &ee) {
		return false
	}
	return ee.category == category
}
