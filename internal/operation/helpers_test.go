// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/matt-FFFFFF/stevedore/internal/config"
)

// record is a leaf that appends its name to a shared log and fails on request.
type record struct {
	Base
	log *[]string
	err error
}

func (r *record) Invoke(ctx context.Context, ec *ExecContext) error {
	ec.Step("recording " + r.P().String("name"))
	*r.log = append(*r.log, r.P().String("name"))

	return r.err
}

// group is a scope that logs its entry and exit.
type group struct {
	ScopeBase
	log *[]string
}

func (g *group) Enter(_ context.Context, ec *ExecContext) error {
	*g.log = append(*g.log, "enter "+g.P().String("name"))
	if g.P().String("name") == "bad-enter" {
		return fmt.Errorf("cannot enter")
	}

	ec.PushCwd(g.P().String("name"))

	return nil
}

func (g *group) Exit(_ context.Context, ec *ExecContext, err error) error {
	*g.log = append(*g.log, "exit "+g.P().String("name"))
	ec.PopCwd()

	return err
}

type fixture struct {
	reg  *Registry
	log  []string
	errs map[string]error
}

func newFixture() *fixture {
	f := &fixture{reg: NewRegistry(), errs: make(map[string]error)}

	f.reg.MustRegister(
		Definition{
			Kind:      "record",
			Essential: true,
			Params: []ParamSpec{
				{Name: "name", Type: TypeString, Required: true},
				{Name: "path", Type: TypeString, Default: "", Path: true},
				{Name: "count", Type: TypeInt, Default: 3},
				{Name: "loud", Type: TypeBool},
				{Name: "tags", Type: TypeStringList},
			},
			New: func(b Base) (Operation, error) {
				if b.P().Int("count") < 0 {
					return nil, fmt.Errorf("%w: count must not be negative", ErrInvalidParams)
				}

				return &record{Base: b, log: &f.log, err: f.errs[b.P().String("name")]}, nil
			},
		},
		Definition{
			Kind:   "group",
			Scoped: true,
			Params: []ParamSpec{{Name: "name", Type: TypeString, Required: true}},
			New: func(b Base) (Operation, error) {
				return &group{ScopeBase: NewScopeBase(b), log: &f.log}, nil
			},
		},
		Definition{
			Kind:       "note",
			NoProgress: true,
			Params:     []ParamSpec{{Name: "text", Type: TypeString, Required: true}},
			New: func(b Base) (Operation, error) {
				return &record{Base: b, log: &f.log}, nil
			},
		},
		Definition{
			Kind:      "windows_only",
			Platforms: Windows,
			Params:    []ParamSpec{{Name: "name", Type: TypeString, Required: true}},
			New: func(b Base) (Operation, error) {
				return &record{Base: b, log: &f.log}, nil
			},
		},
	)

	return f
}

func (f *fixture) rec(name string, extra ...any) Operation {
	raw := map[string]any{"name": name}
	for i := 0; i+1 < len(extra); i += 2 {
		raw[extra[i].(string)] = extra[i+1]
	}

	return f.reg.MustNew("record", raw)
}

func (f *fixture) group(name string, children ...Operation) Scope {
	s := f.reg.MustNew("group", map[string]any{"name": name}).(Scope)
	s.Append(children...)

	return s
}

func testExecContext(cwd string) *ExecContext {
	ec := NewExecContext(config.Default())
	ec.cwd = []string{cwd}
	ec.Platform = Linux

	return ec
}

var errMissing = fmt.Errorf("lookup: %w", fs.ErrNotExist)
