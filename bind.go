// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/canonical/sqlbind/internal/scrub"
	"github.com/canonical/sqlbind/internal/typetag"
)

// Patterns passed to the [TimeFormatter] for the date and time type tags.
const (
	PatternYear     = "%Y"
	PatternDate     = "%Y-%m-%d"
	PatternTime     = "%H:%M:%S.%f"
	PatternDateTime = "%Y-%m-%d %H:%M:%S.%f"
)

// SizeThreshold is the unit step passed to the [SizeFormatter].
const SizeThreshold = 1024

// TimeFormatter formats values bound with the year, date, time, datetime and
// timestamp tags.
type TimeFormatter interface {
	FormatTime(value any, pattern string) (string, error)
}

// SizeFormatter formats values bound with the bytes and bits tags.
type SizeFormatter interface {
	FormatSize(value any, threshold int, bits bool) (string, error)
}

// Binder binds [Bindings] to statements. A Binder holds no state between
// calls and can be shared.
type Binder struct {
	scrubber *scrub.Scrubber
	times    TimeFormatter
	sizes    SizeFormatter
}

// Option configures a [Binder].
type Option func(*Binder) error

// WithEncoding sets the text encoding used to scrub string values. The
// default is UTF-8.
func WithEncoding(name string) Option {
	return func(b *Binder) error {
		s, err := scrub.New(name)
		if err != nil {
			return err
		}
		b.scrubber = s
		return nil
	}
}

// WithTimeFormatter sets the formatter for date and time values. Without
// one, such values are bound as plain text.
func WithTimeFormatter(f TimeFormatter) Option {
	return func(b *Binder) error {
		b.times = f
		return nil
	}
}

// WithSizeFormatter sets the formatter for byte and bit sizes. Without one,
// such values are bound as plain text.
func WithSizeFormatter(f SizeFormatter) Option {
	return func(b *Binder) error {
		b.sizes = f
		return nil
	}
}

// NewBinder returns a Binder configured with opts.
func NewBinder(opts ...Option) (*Binder, error) {
	b := &Binder{scrubber: scrub.UTF8()}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Encoding returns the canonical name of the text encoding strings are
// scrubbed for.
func (b *Binder) Encoding() string {
	return b.scrubber.Name()
}

var defaultBinder = &Binder{scrubber: scrub.UTF8()}

// BindMultiple binds bindings to stmt using a UTF-8 Binder without
// formatters. See [Binder.BindMultiple].
func BindMultiple(stmt Statement, bindings Bindings) error {
	return defaultBinder.BindMultiple(stmt, bindings)
}

// BindMultiple binds every entry of bindings whose placeholder occurs in the
// query text of stmt. Entries for other placeholders are skipped, so a single
// set of bindings can serve several variants of a query.
//
// Entries are bound in placeholder order. The first entry that fails stops the
// call with a [*BindingError]; entries bound before it stay bound.
func (b *Binder) BindMultiple(stmt Statement, bindings Bindings) error {
	query := stmt.SQL()
	placeholders := make([]string, 0, len(bindings))
	for placeholder := range bindings {
		placeholders = append(placeholders, placeholder)
	}
	sort.Strings(placeholders)

	for _, placeholder := range placeholders {
		if !strings.Contains(query, placeholder) {
			continue
		}
		v := bindings[placeholder]
		p, ok := asParam(v)
		if !ok {
			if err := stmt.Bind(placeholder, b.scrubValue(v), ParamInferred); err != nil {
				return &BindingError{Placeholder: placeholder, Value: v, Err: err}
			}
			continue
		}
		if err := b.bindParam(stmt, placeholder, p); err != nil {
			return &BindingError{Placeholder: placeholder, Type: p.Type, Value: p.Value, Err: err}
		}
	}
	return nil
}

// bindParam binds a typed parameter. Known tags go to their binder, integer
// types are passed to the statement and anything else is bound as text.
func (b *Binder) bindParam(stmt Statement, placeholder string, p Param) error {
	value := b.scrubValue(p.Value)
	if kind, ok := typetag.Lookup(tagOf(p)); ok {
		return b.bindKind(stmt, kind, placeholder, value)
	}
	if code, ok := typeCode(p); ok {
		return stmt.Bind(placeholder, value, code)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	return stmt.Bind(placeholder, s, ParamInferred)
}

func (b *Binder) scrubValue(v any) any {
	if s, ok := v.(string); ok {
		return b.scrubber.Scrub(s)
	}
	return v
}
