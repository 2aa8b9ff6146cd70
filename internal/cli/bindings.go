// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/canonical/sqlbind"
)

// LoadBindings reads bindings from a YAML or JSON file and adds the
// "placeholder=value" pairs in sets as bare string values. Either may be
// empty. Values in sets override values from the file.
//
// In the file, a typed value is written as a list:
//
//	":id": ["30", "int"]
//	":teams": [["eng", "sales"], "in", "string"]
func LoadBindings(path string, sets []string) (sqlbind.Bindings, error) {
	decoded := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	bindings := sqlbind.FromWire(decoded)
	for _, set := range sets {
		placeholder, value, ok := strings.Cut(set, "=")
		if !ok || placeholder == "" {
			return nil, fmt.Errorf("invalid binding %q, expected placeholder=value", set)
		}
		bindings[placeholder] = value
	}
	return bindings, nil
}

// ToWire converts bindings back to the form read by LoadBindings.
func ToWire(bindings sqlbind.Bindings) map[string]any {
	m := make(map[string]any, len(bindings))
	for placeholder, v := range bindings {
		switch p := v.(type) {
		case sqlbind.Param:
			m[placeholder] = paramToWire(p)
		case *sqlbind.Param:
			if p == nil {
				m[placeholder] = nil
				continue
			}
			m[placeholder] = paramToWire(*p)
		default:
			m[placeholder] = v
		}
	}
	return m
}

func paramToWire(p sqlbind.Param) []any {
	typ := p.Type
	if code, ok := typ.(sqlbind.ParamType); ok {
		typ = int(code)
	}
	if p.ElemType != "" {
		return []any{p.Value, typ, p.ElemType}
	}
	return []any{p.Value, typ}
}

// MarshalUnpacked renders a query and its bindings as YAML.
func MarshalUnpacked(query string, bindings sqlbind.Bindings) ([]byte, error) {
	return yaml.Marshal(map[string]any{
		"query":    query,
		"bindings": ToWire(bindings),
	})
}
