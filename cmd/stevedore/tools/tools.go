// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tools contains commands that run a single operation outside of a program.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/cmdstate"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/ops"
	"github.com/matt-FFFFFF/stevedore/internal/plan"
	"github.com/urfave/cli/v3"
)

const (
	srcArg     = "src"
	dstArg     = "dst"
	rootArg    = "root"
	reportArg  = "report"
	commandArg = "commands-file"

	splitFlag  = "split-threshold"
	ignoreFlag = "ignore"
	removeFlag = "remove-artifacts"
	shellFlag  = "shell"
)

// ErrMissingArgument is returned when a required argument is empty.
var ErrMissingArgument = errors.New("missing argument")

// Commands returns the single operation commands.
func Commands() []*cli.Command {
	return []*cli.Command{
		wtarCmd(),
		unwtarCmd(),
		checksumCmd(),
		parallelCmd(),
	}
}

func wtarCmd() *cli.Command {
	return &cli.Command{
		Name:  "wtar",
		Usage: "Archive a file or directory unless an identical archive exists",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: srcArg},
			&cli.StringArg{Name: dstArg},
		},
		Flags: append([]cli.Flag{
			&cli.Int64Flag{
				Name:  splitFlag,
				Value: ops.UseConfiguredSplit,
				Usage: "Split the archive into parts of this many bytes, 0 never splits, -1 uses the configured size",
			},
			&cli.StringSliceFlag{
				Name:  ignoreFlag,
				Usage: "Glob of entries to leave out, may be repeated",
			},
		}, cmdstate.Flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := required(cmd, srcArg); err != nil {
				return err
			}

			return runOne(ctx, cmd, "wtar", map[string]any{
				"src":             cmd.StringArg(srcArg),
				"dst":             cmd.StringArg(dstArg),
				"split_threshold": cmd.Int64(splitFlag),
				"ignore":          cmd.StringSlice(ignoreFlag),
			})
		},
	}
}

func unwtarCmd() *cli.Command {
	return &cli.Command{
		Name:  "unwtar",
		Usage: "Extract an archive unless the destination is current",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: srcArg},
			&cli.StringArg{Name: dstArg},
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  removeFlag,
				Usage: "Remove the archive parts after extracting",
			},
		}, cmdstate.Flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := required(cmd, srcArg, dstArg); err != nil {
				return err
			}

			return runOne(ctx, cmd, "unwtar", map[string]any{
				"src":              cmd.StringArg(srcArg),
				"dst":              cmd.StringArg(dstArg),
				"remove_artifacts": cmd.Bool(removeFlag),
			})
		},
	}
}

func checksumCmd() *cli.Command {
	return &cli.Command{
		Name:  "checksum",
		Usage: "Write the checksum of every file below a directory",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: rootArg},
			&cli.StringArg{Name: reportArg},
		},
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  ignoreFlag,
				Usage: "Glob of entries to leave out, may be repeated",
			},
		}, cmdstate.Flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := required(cmd, rootArg, reportArg); err != nil {
				return err
			}

			return runOne(ctx, cmd, "checksum_report", map[string]any{
				"root":   cmd.StringArg(rootArg),
				"report": cmd.StringArg(reportArg),
				"ignore": cmd.StringSlice(ignoreFlag),
			})
		},
	}
}

func parallelCmd() *cli.Command {
	return &cli.Command{
		Name:  "parallel",
		Usage: "Run the commands listed in a file in parallel",
		Description: `Run the commands listed in a file in parallel, one command per line.
A line reading "wait" starts a new wave: its commands only run once every command before it succeeded.`,
		Arguments: []cli.Argument{
			&cli.StringArg{Name: commandArg},
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  shellFlag,
				Usage: "Shell executable used to run each line, the configured shell when empty",
			},
		}, cmdstate.Flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := required(cmd, commandArg); err != nil {
				return err
			}

			return runOne(ctx, cmd, "parallel_run", map[string]any{
				"commands_file": cmd.StringArg(commandArg),
				"shell":         cmd.String(shellFlag),
			})
		},
	}
}

func required(cmd *cli.Command, names ...string) error {
	for _, n := range names {
		if cmd.StringArg(n) == "" {
			return fmt.Errorf("%w: %s", ErrMissingArgument, n)
		}
	}

	return nil
}

// runOne runs a plan holding the single operation kind.
func runOne(ctx context.Context, cmd *cli.Command, kind string, raw map[string]any) error {
	cfg, err := cmdstate.LoadConfig(cmd)
	if err != nil {
		return err //nolint:wrapcheck
	}

	op, err := ops.NewRegistry().New(kind, raw)
	if err != nil {
		return err //nolint:wrapcheck
	}

	a := plan.New()
	if err := a.SetCurrentSection(plan.Sections[0]); err != nil {
		return err //nolint:wrapcheck
	}

	if err := a.Add(op); err != nil {
		return err //nolint:wrapcheck
	}

	return cmdstate.Execute(ctx, cmd, cfg, func(ctx context.Context, ec *operation.ExecContext) error { //nolint:wrapcheck
		return plan.Run(ctx, a, ec) //nolint:wrapcheck
	})
}
