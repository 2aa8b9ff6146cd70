// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package format provides the optional formatters used by SQLbind for the
// date/time and byte size type tags.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/cast"
)

// Time formats date and time values with strftime patterns. Besides the
// usual strftime directives, %f expands to the microseconds of the value.
//
// Values may be a time.Time, a Unix timestamp or a string in any layout
// understood by github.com/spf13/cast.
type Time struct {
	// Location is used to render the value and to interpret strings without
	// a zone. It defaults to UTC.
	Location *time.Location
}

// FormatTime renders value using pattern.
func (f Time) FormatTime(value any, pattern string) (string, error) {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := cast.ToTimeInDefaultLocationE(value, loc)
	if err != nil {
		return "", fmt.Errorf("cannot format %T as time: %w", value, err)
	}
	t = t.In(loc)
	return strftime.Format(expandMicros(pattern, t), t), nil
}

// expandMicros replaces %f in pattern with the zero padded microseconds of t.
func expandMicros(pattern string, t time.Time) string {
	if !strings.Contains(pattern, "%f") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '%' && i+1 < len(pattern) {
			switch pattern[i+1] {
			case 'f':
				fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
				i++
				continue
			case '%':
				b.WriteString("%%")
				i++
				continue
			}
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}
