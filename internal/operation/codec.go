// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// EncodeBlock appends op to body as a block named after its kind.
// Required parameters are always written; optional ones only when they differ from their default.
// Children of scopes are written as nested blocks.
func EncodeBlock(body *hclwrite.Body, op Operation) {
	block := body.AppendNewBlock(op.Kind(), nil)
	b := block.Body()
	params := op.base().params

	for _, s := range op.Definition().AllParams() {
		v := params[s.Name]
		if !s.Required && reflect.DeepEqual(v, s.Default) {
			continue
		}

		b.SetAttributeValue(s.Name, toCty(s.Type, v))
	}

	if sc, ok := op.(Scope); ok {
		for _, c := range sc.Children() {
			EncodeBlock(b, c)
		}
	}
}

// Describe returns the program text of op.
func Describe(op Operation) string {
	f := hclwrite.NewEmptyFile()
	EncodeBlock(f.Body(), op)

	return string(f.Bytes())
}

// DecodeBlock builds the operation described by block, including nested children.
func DecodeBlock(block *hclsyntax.Block, reg *Registry) (Operation, error) {
	def, ok := reg.Lookup(block.Type)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", block.DefRange().String(), ErrUnknownKind, block.Type)
	}

	if len(block.Labels) > 0 {
		return nil, fmt.Errorf("%s: %w: %s takes no labels", block.DefRange().String(), ErrInvalidParams, block.Type)
	}

	raw := make(map[string]any, len(block.Body.Attributes))

	for name, attr := range block.Body.Attributes {
		s, ok := def.Spec(name)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s: unknown parameter %q", attr.SrcRange.String(), ErrInvalidParams, block.Type, name)
		}

		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: %w", attr.SrcRange.String(), diags)
		}

		v, err := fromCty(s.Type, val)
		if err != nil {
			return nil, fmt.Errorf("%s: %s.%s: %w", attr.SrcRange.String(), block.Type, name, err)
		}

		raw[name] = v
	}

	op, err := reg.New(block.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", block.DefRange().String(), err)
	}

	if len(block.Body.Blocks) == 0 {
		return op, nil
	}

	sc, ok := op.(Scope)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s cannot contain blocks", block.DefRange().String(), ErrInvalidParams, block.Type)
	}

	for _, child := range block.Body.Blocks {
		c, err := DecodeBlock(child, reg)
		if err != nil {
			return nil, err
		}

		sc.Append(c)
	}

	return sc, nil
}

func toCty(t ParamType, v any) cty.Value {
	switch t {
	case TypeString:
		s, _ := v.(string)
		return cty.StringVal(s)
	case TypeBool:
		b, _ := v.(bool)
		return cty.BoolVal(b)
	case TypeInt:
		i, _ := v.(int64)
		return cty.NumberIntVal(i)
	case TypeStringList:
		l, _ := v.([]string)
		if len(l) == 0 {
			return cty.ListValEmpty(cty.String)
		}

		vals := make([]cty.Value, len(l))
		for i, s := range l {
			vals[i] = cty.StringVal(s)
		}

		return cty.ListVal(vals)
	}

	return cty.NilVal
}

func fromCty(t ParamType, val cty.Value) (any, error) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, fmt.Errorf("%w: value must be known and not null", ErrInvalidParams)
	}

	switch t {
	case TypeString:
		v, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		return v.AsString(), nil
	case TypeBool:
		v, err := convert.Convert(val, cty.Bool)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		return v.True(), nil
	case TypeInt:
		v, err := convert.Convert(val, cty.Number)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		var i int64
		if err := gocty.FromCtyValue(v, &i); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		return i, nil
	case TypeStringList:
		v, err := convert.Convert(val, cty.List(cty.String))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}

		out := make([]string, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			if e.IsNull() {
				return nil, fmt.Errorf("%w: list elements must not be null", ErrInvalidParams)
			}

			out = append(out, e.AsString())
		}

		return out, nil
	}

	return nil, fmt.Errorf("%w: unsupported parameter type %s", ErrInvalidParams, t)
}
