// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned, wrapped, when a binding is declared in a way
// that can never be bound, such as an "in" parameter of "in" elements.
var ErrInvalidArgument = errors.New("invalid argument")

// BindingError is returned by [BindMultiple] when a value cannot be bound.
type BindingError struct {
	// Placeholder is the placeholder the value was bound to.
	Placeholder string
	// Type is the declared type, nil for a bare value.
	Type any
	// Value is the value that failed to bind.
	Value any
	// Err is the underlying error.
	Err error
}

func (e *BindingError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("cannot bind %q (value %s): %v", e.Placeholder, describe(e.Value), e.Err)
	}
	return fmt.Sprintf("cannot bind %q (type %s, value %s): %v", e.Placeholder, describe(e.Type), describe(e.Value), e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// describe renders v for error messages, cutting long values short.
func describe(v any) string {
	const limit = 64
	var s string
	switch v := v.(type) {
	case string:
		s = fmt.Sprintf("%q", v)
	case []byte:
		s = fmt.Sprintf("%d bytes", len(v))
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
