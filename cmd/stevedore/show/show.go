// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show contains the command that prints a parsed program.
package show

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/ops"
	"github.com/matt-FFFFFF/stevedore/internal/plan"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	fileArg     = "file"
	targetFlag  = "target"
	outlineFlag = "outline"
)

var (
	// ErrNoFile is returned when no program file was given.
	ErrNoFile = errors.New("no program file given")
	// ErrWriteProgram is returned when the program cannot be written out.
	ErrWriteProgram = errors.New("failed to write program")
)

// FS is the filesystem programs are read from.
var FS = afero.NewOsFs()

// ShowCmd is the command that parses a program and prints it again.
var ShowCmd = newShowCmd()

func newShowCmd() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Parse a program and print it",
		Description: `Parse a generated program and print it again.

The output is the canonical rendering of the program, optionally filtered for another platform.
With --outline only the progress message of each operation is printed, one line per operation,
grouped by section.`,
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: fileArg,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  targetFlag,
				Usage: "Render for this platform (linux, mac or windows) instead of the program's target",
			},
			&cli.BoolFlag{
				Name:        outlineFlag,
				Usage:       "Print an outline instead of the program",
				Value:       false,
				DefaultText: "false",
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	path := cmd.StringArg(fileArg)
	if path == "" {
		return ErrNoFile
	}

	prog, err := plan.ParseFile(FS, path, ops.NewRegistry())
	if err != nil {
		return err //nolint:wrapcheck
	}

	target := prog.Target

	if t := cmd.String(targetFlag); t != "" {
		if target, err = operation.ParsePlatform(t); err != nil {
			return fmt.Errorf("--%s: %w", targetFlag, err)
		}
	}

	if cmd.Bool(outlineFlag) {
		return writeOutline(cmd.Root().Writer, prog.Plan, target)
	}

	opts := plan.RenderOptions{
		Target:          target,
		Created:         prog.Created,
		Self:            prog.Self,
		RunningProgress: prog.RunningProgress,
	}

	if err := plan.Render(cmd.Root().Writer, prog.Plan, opts); err != nil {
		return errors.Join(ErrWriteProgram, err)
	}

	return nil
}

func writeOutline(w io.Writer, a *plan.Accumulator, target operation.Platform) error {
	for _, s := range a.Compile(target) {
		if _, err := fmt.Fprintf(w, "%s (%d)\n", s.Name, len(s.Ops)); err != nil {
			return errors.Join(ErrWriteProgram, err)
		}

		for _, op := range s.Ops {
			if err := writeOutlineOp(w, op, "  "); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeOutlineOp(w io.Writer, op operation.Operation, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, op.ProgressMessage()); err != nil {
		return errors.Join(ErrWriteProgram, err)
	}

	s, ok := op.(operation.Scope)
	if !ok {
		return nil
	}

	for _, c := range s.Children() {
		if err := writeOutlineOp(w, c, indent+"  "); err != nil {
			return err
		}
	}

	return nil
}
