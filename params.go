// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"math"
	"reflect"
)

// ParamType is the type marker passed to a [Statement] along with a bound
// value.
type ParamType int

const (
	// ParamInferred leaves the type of the value to the driver.
	ParamInferred ParamType = -1
	ParamNull     ParamType = 0
	ParamInt      ParamType = 1
	ParamStr      ParamType = 2
	ParamLOB      ParamType = 3
	ParamBool     ParamType = 5
)

func (t ParamType) String() string {
	switch t {
	case ParamInferred:
		return "inferred"
	case ParamNull:
		return "null"
	case ParamInt:
		return "int"
	case ParamStr:
		return "str"
	case ParamLOB:
		return "lob"
	case ParamBool:
		return "bool"
	}
	return "unknown"
}

// Statement is a prepared statement that values can be bound to by
// placeholder name. Placeholders include their prefix, e.g. ":id".
type Statement interface {
	// SQL returns the query text of the statement.
	SQL() string
	// Bind binds value to placeholder with the given type marker.
	Bind(placeholder string, value any, typ ParamType) error
	// BindBytes binds the first length bytes of value to placeholder as
	// binary data.
	BindBytes(placeholder string, value []byte, length int) error
}

// Bindings maps placeholders to the values bound to them. A value is either
// bound as is, or is a [Param] carrying a type tag.
type Bindings map[string]any

// Param is a value with an explicit type.
//
// Type is either a type tag such as "int", "match" or "in", or an integer
// type code such as [ParamInt] that is passed straight to the statement.
type Param struct {
	Value any
	Type  any
	// ElemType is the type tag of every element of an "in" parameter. It
	// defaults to "string".
	ElemType string
}

// P returns a Param with the given type tag.
func P(value any, tag string) Param {
	return Param{Value: value, Type: tag}
}

// In returns an "in" Param whose elements are bound with elemTag.
func In(values any, elemTag string) Param {
	return Param{Value: values, Type: "in", ElemType: elemTag}
}

// asParam reports whether v is a Param or a non-nil *Param.
func asParam(v any) (Param, bool) {
	switch p := v.(type) {
	case Param:
		return p, true
	case *Param:
		if p != nil {
			return *p, true
		}
	}
	return Param{}, false
}

// tagOf returns the type tag of p, or "" if Type is not a string.
func tagOf(p Param) string {
	if tag, ok := p.Type.(string); ok {
		return tag
	}
	return ""
}

// typeCode returns the integer type code held in p.Type.
func typeCode(p Param) (ParamType, bool) {
	if p.Type == nil {
		return 0, false
	}
	v := reflect.ValueOf(p.Type)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return ParamType(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := v.Uint()
		if n > math.MaxInt32 {
			return 0, false
		}
		return ParamType(n), true
	}
	return 0, false
}

// FromWire converts bindings decoded from JSON or YAML. A list of two or three
// elements whose second element is a string or an integral number is read as
// [value, type] or [value, "in", element type]. Everything else is bound as
// is.
func FromWire(m map[string]any) Bindings {
	b := make(Bindings, len(m))
	for placeholder, v := range m {
		b[placeholder] = fromWire(v)
	}
	return b
}

func fromWire(v any) any {
	list, ok := v.([]any)
	if !ok || len(list) < 2 || len(list) > 3 {
		return v
	}
	p := Param{Value: list[0]}
	switch t := list[1].(type) {
	case string:
		p.Type = t
	case float64:
		if t != math.Trunc(t) || math.Abs(t) > math.MaxInt32 {
			return v
		}
		p.Type = ParamType(t)
	case int:
		p.Type = ParamType(t)
	case int64:
		p.Type = ParamType(t)
	default:
		return v
	}
	if len(list) == 3 {
		elem, ok := list[2].(string)
		if !ok {
			return v
		}
		p.ElemType = elem
	}
	return p
}
