// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the stevedore command-line interface (CLI).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/stevedore"
	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/kinds"
	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/run"
	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/show"
	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/tools"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
	"github.com/matt-FFFFFF/stevedore/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: append([]*cli.Command{
		kinds.KindsCmd,
		run.RunCmd,
		show.ShowCmd,
	}, tools.Commands()...),
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "stevedore",
	Description: `Stevedore executes installation programs produced by a planner.
A program is a sequence of idempotent file operations grouped in sections:
copying trees, packing and unpacking split archives, running processes in parallel
and reporting progress as it goes. Programs can be re-run safely after a failure.`,
	Usage:     "stevedore run -f program.hcl",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancelCause(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel(nil)

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go signalbroker.Watch(ctx, sigCh, cancel, runbatch.ExitSignal)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", stevedore.Version, stevedore.Commit)

	err := rootCmd.Run(ctx, os.Args)
	if err == nil && ctx.Err() != nil {
		err = context.Cause(ctx)
	}

	if err != nil {
		var oe *operation.OpError
		if !errors.As(err, &oe) {
			ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		}

		os.Exit(runbatch.ExitCodeFor(err)) //nolint:gocritic
	}

	ctxlog.Logger(ctx).Debug("command completed successfully")
}
