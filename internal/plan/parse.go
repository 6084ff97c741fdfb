// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	// ErrProgram is returned for program text that cannot be parsed.
	ErrProgram = errors.New("invalid program")
	// ErrTruncated is returned for programs without their trailing end block.
	ErrTruncated = errors.New("program is truncated")
)

// Program is a parsed program.
type Program struct {
	Created         time.Time
	Self            string
	TotalProgress   int
	RunningProgress int
	Target          operation.Platform
	Plan            *Accumulator
}

// ParseFile reads and parses the program at path.
func ParseFile(fs afero.Fs, path string, reg *operation.Registry) (*Program, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return Parse(src, path, reg)
}

// Parse parses program text produced by Render.
func Parse(src []byte, filename string, reg *operation.Registry) (*Program, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrProgram, diags)
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected body type %T", ErrProgram, file.Body)
	}

	if err := noAttributes(body); err != nil {
		return nil, err
	}

	blocks := body.Blocks
	if len(blocks) == 0 || blocks[0].Type != programBlock {
		return nil, fmt.Errorf("%w: program must start with a %s block", ErrProgram, programBlock)
	}

	if last := blocks[len(blocks)-1]; last.Type != endBlock {
		return nil, fmt.Errorf("%w: %s: missing %s block", ErrTruncated, filename, endBlock)
	}

	prog, err := decodeProgram(blocks[0])
	if err != nil {
		return nil, err
	}

	prog.Plan = New()
	previous := -1

	for _, b := range blocks[1 : len(blocks)-1] {
		if b.Type != sectionBlock || len(b.Labels) != 1 {
			return nil, fmt.Errorf("%w: %s: expected a section block with one label, found %q", ErrProgram, b.DefRange().String(), b.Type)
		}

		name := b.Labels[0]

		idx := slices.Index(Sections, name)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w: %q", b.DefRange().String(), ErrInvalidSection, name)
		}

		if idx <= previous {
			return nil, fmt.Errorf("%w: %s: section %q out of order", ErrProgram, b.DefRange().String(), name)
		}

		previous = idx

		if err := decodeSection(prog.Plan, name, b, reg); err != nil {
			return nil, err
		}
	}

	return prog, nil
}

func decodeSection(a *Accumulator, name string, b *hclsyntax.Block, reg *operation.Registry) error {
	if err := a.SetCurrentSection(name); err != nil {
		return err
	}

	if err := noAttributes(b.Body); err != nil {
		return err
	}

	for _, child := range b.Body.Blocks {
		op, err := operation.DecodeBlock(child, reg)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if err := a.Add(op); err != nil {
			return err
		}
	}

	return nil
}

func noAttributes(body *hclsyntax.Body) error {
	if len(body.Attributes) == 0 {
		return nil
	}

	names := slices.Sorted(maps.Keys(body.Attributes))
	attr := body.Attributes[names[0]]

	return fmt.Errorf("%w: %s: unexpected attribute %q", ErrProgram, attr.SrcRange.String(), attr.Name)
}

func decodeProgram(b *hclsyntax.Block) (*Program, error) {
	prog := &Program{}

	for name, attr := range b.Body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: %w", ErrProgram, diags)
		}

		var err error

		switch name {
		case attrCreated:
			var s string
			if s, err = asString(val); err == nil {
				prog.Created, err = time.Parse(time.RFC3339, s)
			}
		case attrSelf:
			prog.Self, err = asString(val)
		case attrTotalProgress:
			prog.TotalProgress, err = asInt(val)
		case attrRunningProgress:
			prog.RunningProgress, err = asInt(val)
		case attrTarget:
			var s string
			if s, err = asString(val); err == nil {
				prog.Target, err = operation.ParsePlatform(s)
			}
		default:
			err = errors.New("unknown attribute")
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %w", ErrProgram, attr.SrcRange.String(), name, err)
		}
	}

	return prog, nil
}

func asString(v cty.Value) (string, error) {
	v, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if v.IsNull() {
		return "", errors.New("must not be null")
	}

	return v.AsString(), nil
}

func asInt(v cty.Value) (int, error) {
	var i int

	err := gocty.FromCtyValue(v, &i)

	return i, err //nolint:wrapcheck
}
