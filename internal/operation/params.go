// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// ParamType is the type of a parameter value.
type ParamType int

// Parameter types. Values are held as string, bool, int64 and []string respectively.
const (
	TypeString ParamType = iota
	TypeBool
	TypeInt
	TypeStringList
)

func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "number"
	case TypeStringList:
		return "list of string"
	default:
		return "unknown"
	}
}

// zero returns the value an optional parameter takes when its spec has no default.
func (t ParamType) zero() any {
	switch t {
	case TypeString:
		return ""
	case TypeBool:
		return false
	case TypeInt:
		return int64(0)
	default:
		return nil
	}
}

// ParamSpec describes one parameter of an operation kind.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	// Default is used when the parameter is absent. It is ignored for required parameters,
	// and nil means the zero value of Type.
	Default any
	// Path marks parameters naming filesystem entries, reported with their mode on failure.
	Path bool
	// Doc is a short description used by help output.
	Doc string
}

// Params holds the complete, normalized parameter values of an operation, defaults included.
type Params map[string]any

// String returns a string parameter.
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Bool returns a bool parameter.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Int returns a number parameter.
func (p Params) Int(name string) int64 {
	i, _ := p[name].(int64)
	return i
}

// Strings returns a copy of a string list parameter.
func (p Params) Strings(name string) []string {
	l, _ := p[name].([]string)
	return slices.Clone(l)
}

// Equal reports whether both parameter sets hold the same values.
func (p Params) Equal(other Params) bool {
	return maps.EqualFunc(p, other, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

// Normalize converts v to the canonical Go type for t.
func Normalize(t ParamType, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint32:
			return int64(n), nil
		}
	case TypeStringList:
		switch l := v.(type) {
		case nil:
			return []string{}, nil
		case []string:
			if l == nil {
				return []string{}, nil
			}

			return slices.Clone(l), nil
		case []any:
			out := make([]string, 0, len(l))

			for _, e := range l {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("%w: list element %v is not a string", ErrInvalidParams, e)
				}

				out = append(out, s)
			}

			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: %v (%T) is not a %s", ErrInvalidParams, v, v, t)
}
