// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package scrub replaces byte sequences that are invalid in a text encoding
// before the text is bound to a statement.
package scrub

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Scrubber cleans text for a single encoding.
type Scrubber struct {
	name string
	enc  encoding.Encoding
}

// New returns a Scrubber for the named encoding. Names are resolved with the
// WHATWG encoding index, so "utf8", "latin1" and "windows-1252" are all
// accepted.
func New(name string) (*Scrubber, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q", name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}
	return &Scrubber{name: canonical, enc: enc}, nil
}

// UTF8 returns the Scrubber for UTF-8 text.
func UTF8() *Scrubber {
	return &Scrubber{name: "utf-8", enc: unicode.UTF8}
}

// Name returns the canonical name of the encoding.
func (s *Scrubber) Name() string {
	return s.name
}

// Scrub returns text with every invalid sequence replaced. For UTF-8 the
// replacement is U+FFFD. Other encodings are decoded and encoded again, so a
// sequence without a mapping becomes the encoding's replacement byte.
func (s *Scrubber) Scrub(text string) string {
	if s.name == "utf-8" {
		out, err := unicode.UTF8.NewDecoder().String(text)
		if err != nil {
			return text
		}
		return out
	}
	decoded, err := s.enc.NewDecoder().String(text)
	if err != nil {
		return text
	}
	out, err := encoding.ReplaceUnsupported(s.enc.NewEncoder()).String(decoded)
	if err != nil {
		return text
	}
	return out
}
