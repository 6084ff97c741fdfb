// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package kinds contains the command that documents the operation kinds.
package kinds

import (
	"context"
	"fmt"
	"io"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/ops"
	"github.com/urfave/cli/v3"
)

const kindArg = "kind"

// KindsCmd lists the operation kinds, or the parameters of one kind.
var KindsCmd = newKindsCmd()

func newKindsCmd() *cli.Command {
	return &cli.Command{
		Name:  "kinds",
		Usage: "Get info on the operation kinds a program can contain",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: kindArg,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	reg := ops.NewRegistry()
	w := cmd.Root().Writer

	kind := cmd.StringArg(kindArg)
	if kind == "" {
		return writeKinds(w, reg)
	}

	def, ok := reg.Lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %s", operation.ErrUnknownKind, kind)
	}

	return writeKind(w, def)
}

func writeKinds(w io.Writer, reg *operation.Registry) error {
	if _, err := fmt.Fprintf(w, "Available operation kinds:\n\n"); err != nil {
		return err //nolint:wrapcheck
	}

	for _, k := range reg.Kinds() {
		def, _ := reg.Lookup(k)
		if _, err := fmt.Fprintf(w, "- %-26s %s\n", k, def.Description); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func writeKind(w io.Writer, def *operation.Definition) error {
	if _, err := fmt.Fprintf(w, "%s: %s\n", def.Kind, def.Description); err != nil {
		return err //nolint:wrapcheck
	}

	if def.Scoped {
		fmt.Fprintln(w, "Scope: holds nested operations") //nolint:errcheck
	}

	if def.Platforms != 0 {
		fmt.Fprintf(w, "Platforms: %s\n", def.Platforms) //nolint:errcheck
	}

	fmt.Fprintf(w, "\nParameters:\n") //nolint:errcheck

	for _, p := range def.AllParams() {
		line := fmt.Sprintf("  %-26s %-15s", p.Name, p.Type)

		switch {
		case p.Required:
			line += " required"
		default:
			line += fmt.Sprintf(" default %v", p.Default)
		}

		if p.Doc != "" {
			line += "  " + p.Doc
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}
