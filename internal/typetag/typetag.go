// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package typetag maps the type tags used in SQLbind bindings to the kind of
// binder that handles them.
package typetag

import (
	"sort"
	"strings"
)

// Kind identifies a scalar binder.
type Kind int

const (
	Invalid Kind = iota
	Year
	Date
	Time
	DateTime
	Bool
	Null
	Int
	String
	Bytes
	Bits
	Match
	Like
	Binary
	In
)

var kindNames = []string{
	Invalid:  "invalid",
	Year:     "year",
	Date:     "date",
	Time:     "time",
	DateTime: "datetime",
	Bool:     "bool",
	Null:     "null",
	Int:      "int",
	String:   "string",
	Bytes:    "bytes",
	Bits:     "bits",
	Match:    "match",
	Like:     "like",
	Binary:   "binary",
	In:       "in",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// registry holds every recognised tag in lower case.
var registry = map[string]Kind{
	"year":      Year,
	"date":      Date,
	"time":      Time,
	"datetime":  DateTime,
	"timestamp": DateTime,
	"bool":      Bool,
	"boolean":   Bool,
	"null":      Null,
	"int":       Int,
	"integer":   Int,
	"number":    Int,
	"limit":     Int,
	"offset":    Int,
	"str":       String,
	"string":    String,
	"text":      String,
	"float":     String,
	"varchar":   String,
	"varchar2":  String,
	"bytes":     Bytes,
	"bits":      Bits,
	"match":     Match,
	"like":      Like,
	"lob":       Binary,
	"large":     Binary,
	"object":    Binary,
	"blob":      Binary,
	"in":        In,
}

// Lookup returns the Kind registered for tag. Tags are case-insensitive. The
// second return value is false for unknown tags.
func Lookup(tag string) (Kind, bool) {
	k, ok := registry[strings.ToLower(tag)]
	return k, ok
}

// Tags returns all registered tags in sorted order.
func Tags() []string {
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
