// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

// WaitMarker separates waves in a command list.
const WaitMarker = "wait"

// ErrNoCommands is returned when a command list is empty.
var ErrNoCommands = errors.New("no commands to run")

// Runner runs command lists as waves of parallel processes.
type Runner struct {
	// AbortFile, when set, is watched while the commands run. Its removal aborts the run.
	AbortFile string
	// PollInterval is how often processes and the abort file are checked.
	PollInterval time.Duration
	// Shell, when set, runs each command line through "<shell> -c".
	Shell string
	// Cwd is the working directory of every process.
	Cwd string
	// Env is added to the environment of every process.
	Env map[string]string
	// Label names the run in results and logs.
	Label string
}

// SplitWaves splits a command list into waves at every WaitMarker entry.
// Empty waves are dropped.
func SplitWaves(cmds [][]string) [][][]string {
	var (
		waves   [][][]string
		current [][]string
	)

	for _, c := range cmds {
		if len(c) == 1 && strings.TrimSpace(c[0]) == WaitMarker {
			if len(current) > 0 {
				waves = append(waves, current)
			}

			current = nil

			continue
		}

		if len(c) == 0 {
			continue
		}

		current = append(current, c)
	}

	if len(current) > 0 {
		waves = append(waves, current)
	}

	return waves
}

// Batch builds the runnable tree for cmds: a serial batch of parallel waves.
func (r *Runner) Batch(cmds [][]string) (*SerialBatch, error) {
	waves := SplitWaves(cmds)
	if len(waves) == 0 {
		return nil, ErrNoCommands
	}

	label := r.Label
	if label == "" {
		label = "run"
	}

	root := &SerialBatch{BaseCommand: NewBaseCommand(label, r.Cwd, r.Env)}

	for i, wave := range waves {
		pb := &ParallelBatch{BaseCommand: NewBaseCommand(fmt.Sprintf("wave %d", i+1), "", nil)}

		for _, argv := range wave {
			if r.Shell != "" {
				argv = []string{r.Shell, "-c", strings.Join(argv, " ")}
			}

			cmd := NewOSCommand(strings.Join(argv, " "), argv, "", nil)
			cmd.PollInterval = r.PollInterval
			pb.Commands = append(pb.Commands, cmd)
		}

		root.Commands = append(root.Commands, pb)
	}

	return root, nil
}

// Run runs cmds and returns the result tree together with the first failure.
// The error wraps ErrAborted when the abort file disappeared, and ErrNonZeroExit for failed processes.
func (r *Runner) Run(ctx context.Context, cmds [][]string) (Results, error) {
	batch, err := r.Batch(cmds)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	wg := &sync.WaitGroup{}

	if r.AbortFile != "" {
		wg.Add(1)

		go func() {
			defer wg.Done()
			WatchAbortFile(ctx, r.AbortFile, r.PollInterval, cancel)
		}()
	}

	ctxlog.Debug(ctx, "running commands", "label", batch.GetLabel(), "waves", len(batch.Commands))

	results := batch.Run(ctx)

	runErr := results.FirstError()
	if runErr == nil && ctx.Err() != nil {
		runErr = causeError(ctx)
	}

	cancel(nil)
	wg.Wait()

	return results, runErr
}
