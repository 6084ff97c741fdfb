// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the command that executes a generated program.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/stevedore/cmd/stevedore/cmdstate"
	"github.com/matt-FFFFFF/stevedore/internal/config"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/ops"
	"github.com/matt-FFFFFF/stevedore/internal/plan"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag     = "file"
	platformFlag = "platform"
	spawnFlag    = "spawn"
)

var (
	// ErrGetProgram is returned when the program file cannot be fetched.
	ErrGetProgram = errors.New("failed to get program file")
	// ErrNoFile is returned when no program was named.
	ErrNoFile = errors.New("no program file given, use --file or -f")
)

// RunCmd is the command that executes a program produced by the planner.
var RunCmd = newRunCmd()

func newRunCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a generated program",
		Description: `Execute a generated program file.

The program is parsed completely before anything runs, so a truncated or edited file
fails without side effects. Sections run in order and every operation advances the
progress counter carried over from the planner.

Program URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.
`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:      fileFlag,
				Aliases:   []string{"f"},
				Usage:     "URL of the program file. Supports Hashicorp's go-getter syntax.",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:  platformFlag,
				Usage: "Execute as this platform (linux, mac or windows) instead of the current one",
			},
			&cli.BoolFlag{
				Name:        spawnFlag,
				Usage:       "Execute the program in a separate stevedore process",
				Value:       false,
				DefaultText: "false",
			},
		}, cmdstate.Flags()...),
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	url := cmd.String(fileFlag)
	if url == "" {
		url = cmd.Args().First()
	}

	if url == "" {
		return ErrNoFile
	}

	cfg, err := cmdstate.LoadConfig(cmd)
	if err != nil {
		return err //nolint:wrapcheck
	}

	src, err := getURL(ctx, url)
	if err != nil {
		return err
	}

	prog, err := plan.Parse(src, url, ops.NewRegistry())
	if err != nil {
		return err //nolint:wrapcheck
	}

	logger.Debug("program parsed",
		"created", prog.Created,
		"self", prog.Self,
		"total_progress", prog.TotalProgress,
		"running_progress", prog.RunningProgress,
	)

	if cmd.Bool(spawnFlag) {
		return spawn(ctx, cmd, cfg, src)
	}

	var platform operation.Platform

	if p := cmd.String(platformFlag); p != "" {
		if platform, err = operation.ParsePlatform(p); err != nil {
			return fmt.Errorf("--%s: %w", platformFlag, err)
		}
	}

	return cmdstate.Execute(ctx, cmd, cfg, func(ctx context.Context, ec *operation.ExecContext) error { //nolint:wrapcheck
		if platform != 0 {
			ec.Platform = platform
		}

		return plan.RunProgram(ctx, prog, ec) //nolint:wrapcheck
	})
}

// spawn writes the program to a temporary file and runs it in a child process of this executable.
func spawn(ctx context.Context, cmd *cli.Command, cfg *config.Config, src []byte) error {
	exe, err := os.Executable()
	if err != nil {
		return err //nolint:wrapcheck
	}

	f, err := os.CreateTemp("", "stevedore-program-*.hcl")
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(src); err != nil {
		f.Close()  //nolint:errcheck
		return err //nolint:wrapcheck
	}

	if err := f.Close(); err != nil {
		return err //nolint:wrapcheck
	}

	var args []string

	for _, name := range []string{cmdstate.ConfigFlag, platformFlag} {
		if v := cmd.String(name); v != "" {
			args = append(args, "--"+name, v)
		}
	}

	if cmd.IsSet(cmdstate.UnitTimeoutFlag) {
		args = append(args, "--"+cmdstate.UnitTimeoutFlag, cfg.UnitTimeout.String())
	}

	if cmd.Bool(cmdstate.NoSummaryFlag) {
		args = append(args, "--"+cmdstate.NoSummaryFlag)
	}

	ctxlog.Info(ctx, "spawning program", "exe", exe, "program", f.Name())

	return plan.Spawn(ctx, cfg, exe, f.Name(), cmd.Root().Writer, cmd.Root().ErrWriter, args...) //nolint:wrapcheck
}
