// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate holds the flags and the execution session shared by the commands.
package cmdstate

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/stevedore/internal/config"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/plan"
	"github.com/matt-FFFFFF/stevedore/internal/progress"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
	"github.com/urfave/cli/v3"
)

const (
	// ConfigFlag names the YAML settings file.
	ConfigFlag = "config"
	// AbortFileFlag names the file whose removal aborts the run.
	AbortFileFlag = "abort-file"
	// UnitTimeoutFlag limits the run time of each operation.
	UnitTimeoutFlag = "unit-timeout"
	// NoSummaryFlag suppresses the timing summary.
	NoSummaryFlag = "no-summary"

	reporterBuffer = 100
)

// Flags returns the flags understood by every executing command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      ConfigFlag,
			Aliases:   []string{"c"},
			Usage:     "YAML settings file",
			TakesFile: true,
			Sources:   cli.EnvVars("STEVEDORE_CONFIG"),
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      AbortFileFlag,
			Usage:     "Abort the run as soon as this file no longer exists",
			TakesFile: true,
			Sources:   cli.EnvVars("STEVEDORE_ABORT_FILE"),
			OnlyOnce:  true,
		},
		&cli.DurationFlag{
			Name:     UnitTimeoutFlag,
			Aliases:  []string{"timeout"},
			Usage:    "Maximum run time of each operation, 0 for none",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:        NoSummaryFlag,
			Usage:       "Do not print the timing summary",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	}
}

// LoadConfig reads the settings file named by the flags and applies the flag overrides.
func LoadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(cmd.String(ConfigFlag))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if cmd.IsSet(AbortFileFlag) {
		cfg.AbortFile = cmd.String(AbortFileFlag)
	}

	if cmd.IsSet(UnitTimeoutFlag) {
		cfg.UnitTimeout = cmd.Duration(UnitTimeoutFlag)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return cfg, nil
}

// Execute runs fn with a fresh execution context for cfg.
// Progress is logged, the abort file is watched and the timing summary is written to the command's
// error writer. A failure is reported there as a JSON record and returned.
func Execute(
	ctx context.Context,
	cmd *cli.Command,
	cfg *config.Config,
	fn func(ctx context.Context, ec *operation.ExecContext) error,
) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup

	if cfg.AbortFile != "" {
		wg.Add(1)

		go func() {
			defer wg.Done()
			runbatch.WatchAbortFile(ctx, cfg.AbortFile, cfg.PollInterval, cancel)
		}()
	}

	reporter := progress.NewChannelReporter(ctx, reporterBuffer)
	reporter.Listen(progress.NewLogListener(ctxlog.Logger(ctx).With("command", cmd.Name)))

	ec := operation.NewExecContext(cfg)
	ec.Reporter = reporter
	ec.Stdout = cmd.Root().Writer
	ec.Stderr = cmd.Root().ErrWriter

	err := fn(ctx, ec)

	reporter.Close()
	cancel(nil)
	wg.Wait()

	if !cmd.Bool(NoSummaryFlag) {
		if werr := plan.WriteSummary(ec.Stderr, ec); werr != nil {
			ctxlog.Warn(ctx, "failed to write timing summary", "error", werr)
		}
	}

	if err != nil {
		plan.WriteFailureReport(ec.Stderr, err)
		return err
	}

	return nil
}
