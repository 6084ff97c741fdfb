// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"time"
)

var _ Runnable = (*SerialBatch)(nil)

// SerialBatch runs its commands one after the other.
// Once a command fails, or the context is cancelled, the remaining commands are skipped.
type SerialBatch struct {
	*BaseCommand
	Commands []Runnable // The commands or nested batches to run
}

// Run implements the Runnable interface for SerialBatch.
func (b *SerialBatch) Run(ctx context.Context) Results {
	start := time.Now()
	results := make(Results, 0, len(b.Commands))

	var stopped error

	for _, cmd := range b.Commands {
		cmd.SetParent(b)
		cmd.InheritEnv(b.Env)
		cmd.SetCwd(b.Cwd)

		if stopped == nil && ctx.Err() != nil {
			stopped = causeError(ctx)
		}

		if stopped != nil {
			results = append(results, &Result{
				Label:  cmd.GetLabel(),
				Status: ResultStatusSkipped,
				Error:  stopped,
			})

			continue
		}

		childResults := cmd.Run(ctx)
		results = append(results, childResults...)

		if childResults.HasError() {
			stopped = ErrSkipOnError
		}
	}

	res := Results{&Result{
		Label:    b.GetLabel(),
		Children: results,
		Status:   ResultStatusSuccess,
		Duration: time.Since(start),
	}}
	if results.HasError() {
		res[0].ExitCode = -1
		res[0].Error = ErrResultChildrenHasError
		res[0].Status = ResultStatusError
	}

	return res
}
