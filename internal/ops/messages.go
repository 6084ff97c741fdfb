// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"
	"regexp"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

var varName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func messageDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "section_comment",
			Description: "a comment in the program, no effect",
			NoProgress:  true,
			Params: []operation.ParamSpec{
				{Name: "text", Type: operation.TypeString, Required: true},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &sectionComment{Base: b}, nil
			},
		},
		{
			Kind:        "progress",
			Description: "print the running progress with a message",
			NoProgress:  true,
			Params: []operation.ParamSpec{
				{Name: "message", Type: operation.TypeString, Required: true},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &progressMessage{Base: b}, nil
			},
		},
		{
			Kind:        "echo",
			Description: "print a message",
			Params: []operation.ParamSpec{
				{Name: "message", Type: operation.TypeString, Required: true},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &echo{Base: b}, nil
			},
		},
		{
			Kind:        "assign",
			Description: "set a variable exported to every process started later",
			Essential:   true,
			NoProgress:  true,
			Params: []operation.ParamSpec{
				{Name: "name", Type: operation.TypeString, Required: true},
				{Name: "value", Type: operation.TypeString, Required: true},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if !varName.MatchString(b.P().String("name")) {
					return nil, fmt.Errorf("%w: invalid variable name %q", operation.ErrInvalidParams, b.P().String("name"))
				}

				return &assign{Base: b}, nil
			},
		},
	}
}

type sectionComment struct {
	operation.Base
}

func (s *sectionComment) ProgressMessage() string {
	return "# " + s.P().String("text")
}

func (s *sectionComment) Invoke(ctx context.Context, _ *operation.ExecContext) error {
	ctxlog.Debug(ctx, s.P().String("text"))
	return nil
}

type progressMessage struct {
	operation.Base
}

func (p *progressMessage) ProgressMessage() string {
	return p.P().String("message")
}

func (p *progressMessage) Invoke(_ context.Context, ec *operation.ExecContext) error {
	_, err := fmt.Fprintf(ec.Stdout, "Progress: %d of %d; %s\n", ec.RunningProgress, ec.TotalProgress, p.P().String("message"))
	return err //nolint:wrapcheck
}

type echo struct {
	operation.Base
}

func (e *echo) ProgressMessage() string {
	return "echo " + e.P().String("message")
}

func (e *echo) Invoke(_ context.Context, ec *operation.ExecContext) error {
	_, err := fmt.Fprintln(ec.Stdout, e.P().String("message"))
	return err //nolint:wrapcheck
}

type assign struct {
	operation.Base
}

func (a *assign) ProgressMessage() string {
	return a.P().String("name") + " = " + a.P().String("value")
}

func (a *assign) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	ctxlog.Debug(ctx, "assigning variable", "name", a.P().String("name"))
	ec.SetVar(a.P().String("name"), a.P().String("value"))

	return nil
}
