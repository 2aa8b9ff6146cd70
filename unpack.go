// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbind

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// defaultElemType is the type tag of "in" elements when none is declared.
const defaultElemType = "string"

// expansion records the placeholders an "in" parameter was expanded into.
type expansion struct {
	placeholder string
	names       []string
}

// UnpackIN expands every "in" parameter of bindings into one parameter per
// element and rewrites query to list the new placeholders. For example, with
// the bindings
//
//	Bindings{":ids": In([]int{4, 7}, "int")}
//
// the query "SELECT * FROM t WHERE id IN (:ids)" becomes
// "SELECT * FROM t WHERE id IN (:ids_0, :ids_1)", and ":ids" is replaced by
// ":ids_0" and ":ids_1" bound as int.
//
// UnpackIN must be run before the statement is prepared. The inputs are not
// modified. If any "in" parameter is invalid, an error wrapping
// [ErrInvalidArgument] is returned and nothing is rewritten. Generated
// placeholders never replace entries already present in bindings.
func UnpackIN(query string, bindings Bindings) (string, Bindings, error) {
	placeholders := make([]string, 0, len(bindings))
	for placeholder := range bindings {
		placeholders = append(placeholders, placeholder)
	}
	sort.Strings(placeholders)

	var expansions []expansion
	generated := Bindings{}
	for _, placeholder := range placeholders {
		p, ok := asParam(bindings[placeholder])
		if !ok || !strings.EqualFold(tagOf(p), "in") {
			continue
		}
		elemType := p.ElemType
		if elemType == "" {
			elemType = defaultElemType
		}
		if strings.EqualFold(elemType, "in") {
			return "", nil, fmt.Errorf("%w: %q: in parameters cannot contain in parameters", ErrInvalidArgument, placeholder)
		}
		elems := sequence(p.Value)
		if len(elems) == 0 {
			return "", nil, fmt.Errorf("%w: %q: in parameter has no values", ErrInvalidArgument, placeholder)
		}
		exp := expansion{placeholder: placeholder, names: make([]string, len(elems))}
		for i, elem := range elems {
			name := placeholder + "_" + strconv.Itoa(i)
			exp.names[i] = name
			if _, ok := generated[name]; !ok {
				generated[name] = Param{Value: elem, Type: elemType}
			}
		}
		expansions = append(expansions, exp)
	}

	expanded := make(Bindings, len(bindings)+len(generated))
	for placeholder, v := range bindings {
		expanded[placeholder] = v
	}
	for _, exp := range expansions {
		delete(expanded, exp.placeholder)
	}
	for name, v := range generated {
		if _, ok := bindings[name]; ok {
			continue
		}
		expanded[name] = v
	}

	// Longer placeholders go first so that ":a_1" is rewritten before ":a".
	sort.SliceStable(expansions, func(i, j int) bool {
		return len(expansions[i].placeholder) > len(expansions[j].placeholder)
	})
	for _, exp := range expansions {
		query = replacePlaceholder(query, exp.placeholder, strings.Join(exp.names, ", "))
	}
	return query, expanded, nil
}

// sequence returns the elements of v if it is a slice or array, and v itself
// otherwise. Byte slices are single values.
func sequence(v any) []any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{v}
		}
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return elems
	}
	return []any{v}
}

// replacePlaceholder replaces the occurrences of placeholder in query that
// are not the start of a longer identifier.
func replacePlaceholder(query, placeholder, replacement string) string {
	if placeholder == "" {
		return query
	}
	var b strings.Builder
	for {
		i := strings.Index(query, placeholder)
		if i < 0 {
			b.WriteString(query)
			return b.String()
		}
		end := i + len(placeholder)
		b.WriteString(query[:i])
		if r, _ := utf8.DecodeRuneInString(query[end:]); end < len(query) && isIdentRune(r) {
			b.WriteString(placeholder)
		} else {
			b.WriteString(replacement)
		}
		query = query[end:]
	}
}

// containsPlaceholder reports whether placeholder occurs in query other than
// as the start of a longer identifier.
func containsPlaceholder(query, placeholder string) bool {
	if placeholder == "" {
		return false
	}
	for {
		i := strings.Index(query, placeholder)
		if i < 0 {
			return false
		}
		query = query[i+len(placeholder):]
		if r, _ := utf8.DecodeRuneInString(query); query == "" || !isIdentRune(r) {
			return true
		}
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
