// Package errors provides the builder-style error wrapper used
// throughout leakwatch, adapted from the teacher repository's
// centralized error-handling package.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// Category groups errors for logging and metrics purposes.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryValidation    Category = "validation"
	CategoryState         Category = "state"
	CategoryResource      Category = "resource"
)

// EnhancedError wraps an error with a category and free-form context,
// built up through a small fluent builder.
type EnhancedError struct {
	Err      error
	Category Category
	Context  map[string]any
}

func (e *EnhancedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return string(e.Category)
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// Is supports errors.Is by comparing categories when the target is
// also an *EnhancedError, falling back to the wrapped error otherwise.
func (e *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return e.Category == other.Category
	}
	return stderrors.Is(e.Err, target)
}

// Builder accumulates fields for an EnhancedError before Build emits
// the immutable value. The zero value is unusable; start with New.
type Builder struct {
	err      error
	category Category
	context  map[string]any
}

// New starts a Builder wrapping err (which may be nil for errors that
// originate here rather than wrapping a lower-level cause).
func New(err error) *Builder {
	return &Builder{err: err}
}

func (b *Builder) Category(c Category) *Builder {
	b.category = c
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any, 4)
	}
	b.context[key] = value
	return b
}

// Build returns the finished error. If the builder wrapped a nil
// error, Build synthesizes one from the category name so the
// result is never a nil-valued non-nil interface.
func (b *Builder) Build() error {
	err := b.err
	if err == nil {
		err = stderrors.New(string(b.category))
	}
	ee := &EnhancedError{Err: err, Category: b.category}
	if len(b.context) > 0 {
		ee.Context = maps.Clone(b.context)
	}
	return ee
}

// Is reports whether err or any error in its chain is an
// EnhancedError of category c.
func Is(err error, c Category) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == c
	}
	return false
}
