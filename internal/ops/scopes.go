// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

func scopeDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "cd",
			Description: "run the nested operations in another directory",
			Scoped:      true,
			Params: []operation.ParamSpec{
				pathParam("path", "directory to change to"),
				flag("create", "create the directory when missing"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &cd{ScopeBase: operation.NewScopeBase(b)}, nil
			},
		},
		{
			Kind:        "stage",
			Description: "group nested operations under a name",
			Scoped:      true,
			Params: []operation.ParamSpec{
				{Name: "name", Type: operation.TypeString, Required: true, Doc: "stage name"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if b.P().String("name") == "" {
					return nil, fmt.Errorf("%w: stage name must not be empty", operation.ErrInvalidParams)
				}

				return &stage{ScopeBase: operation.NewScopeBase(b)}, nil
			},
		},
	}
}

type cd struct {
	operation.ScopeBase
}

func (c *cd) Enter(ctx context.Context, ec *operation.ExecContext) error {
	dir := ec.Abs(c.P().String("path"))

	if c.P().Bool("create") {
		ec.Step("creating " + dir)

		if err := FS.MkdirAll(dir, 0o755); err != nil {
			return err //nolint:wrapcheck
		}
	}

	ec.Step("changing to " + dir)

	fi, err := FS.Stat(dir)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, dir)
	}

	ctxlog.Debug(ctx, "changing directory", "path", dir)
	ec.PushCwd(dir)

	return nil
}

func (c *cd) Exit(_ context.Context, ec *operation.ExecContext, err error) error {
	ec.PopCwd()
	return err
}

// HasOwnEffect is true when the directory is created.
func (c *cd) HasOwnEffect() bool {
	return c.P().Bool("create")
}

type stage struct {
	operation.ScopeBase
}

func (s *stage) ProgressMessage() string {
	return s.P().String("name")
}

func (s *stage) Enter(ctx context.Context, _ *operation.ExecContext) error {
	ctxlog.Info(ctx, "stage", "name", s.P().String("name"))
	return nil
}
