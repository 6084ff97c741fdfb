// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"sync"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

var _ Runnable = (*ParallelBatch)(nil)

// ParallelBatch runs its commands concurrently.
// The first failure stops every sibling that is still running.
type ParallelBatch struct {
	*BaseCommand
	Commands []Runnable // The commands or nested batches to run
}

// Run implements the Runnable interface for ParallelBatch.
func (b *ParallelBatch) Run(ctx context.Context) Results {
	logger := ctxlog.Logger(ctx).
		With("label", FullLabel(b)).
		With("runnableType", "ParallelBatch")

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	start := time.Now()
	children := make([]Results, len(b.Commands))
	wg := &sync.WaitGroup{}

	for i, cmd := range b.Commands {
		cmd.SetParent(b)
		cmd.InheritEnv(b.Env)
		cmd.SetCwd(b.Cwd)

		wg.Add(1)

		go func() {
			defer wg.Done()

			r := cmd.Run(ctx)
			if r.HasError() {
				cancel(ErrSiblingFailed)
			}

			children[i] = r
		}()
	}

	logger.Debug("waiting for commands", "count", len(b.Commands))
	wg.Wait()

	var flat Results
	for _, r := range children {
		flat = append(flat, r...)
	}

	res := Results{&Result{
		Label:    b.GetLabel(),
		Children: flat,
		Status:   ResultStatusSuccess,
		Duration: time.Since(start),
	}}
	if flat.HasError() {
		res[0].ExitCode = -1
		res[0].Error = ErrResultChildrenHasError
		res[0].Status = ResultStatusError
	}

	return res
}
