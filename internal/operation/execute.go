// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/progress"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
)

// Execute runs op and, for scopes, its children.
//
// Operations for other platforms are skipped. Leaf operations advance the running progress count
// and run under the configured unit timeout. Errors in the operation's ignore set are logged and
// absorbed unless the run has been cancelled. Any other error is returned as an *OpError; enclosing
// scopes add themselves to it as it propagates.
func Execute(ctx context.Context, ec *ExecContext, op Operation) (err error) {
	if !op.Platforms().Has(ec.Platform) {
		ctxlog.Debug(ctx, "skipping operation for other platform", "operation", op.ProgressMessage(), "platforms", op.Platforms().String())
		ec.report(progress.EventSkipped, op, ec.RunningProgress, nil)

		return nil
	}

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	// Operations that do not count towards progress report the number of the last one that did,
	// but their timing carries no number of its own.
	number, timed := ec.RunningProgress, 0
	if n := op.OwnProgressCount(); n > 0 {
		ec.RunningProgress += n
		number, timed = ec.RunningProgress, ec.RunningProgress
	}

	ec.lastStep = ""
	start := ec.now()

	ec.report(progress.EventStarted, op, number, nil)
	ctxlog.Debug(ctx, "operation started", "operation", op.ProgressMessage(), "progress", number)

	defer func() {
		ec.Timings = append(ec.Timings, Timing{
			Number:  timed,
			Message: op.ProgressMessage(),
			Elapsed: ec.now().Sub(start),
			Scope:   op.Scoped(),
		})

		if err == nil {
			ec.report(progress.EventCompleted, op, number, nil)
			return
		}

		if ctx.Err() == nil && op.IgnoreErrors().Matches(err) {
			ctxlog.Warn(ctx, "ignoring error", "operation", op.ProgressMessage(), "error", err.Error())
			ec.report(progress.EventCompleted, op, number, nil)

			err = nil

			return
		}

		var oe *OpError
		if errors.As(err, &oe) {
			oe.Scopes = append(oe.Scopes, op.ProgressMessage())
		} else {
			err = newOpError(ec, op, number, err)
		}

		ec.report(progress.EventFailed, op, number, err)
	}()

	if s, ok := op.(Scope); ok {
		return executeScope(ctx, ec, s)
	}

	return invoke(ctx, ec, op)
}

// invoke runs a leaf operation under the configured unit timeout.
// The timeout context stays local so the caller still sees whether the run itself was cancelled.
func invoke(ctx context.Context, ec *ExecContext, op Operation) error {
	if t := ec.Config.UnitTimeout; t > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeoutCause(ctx, t, fmt.Errorf("%w: %s exceeded %s", runbatch.ErrTimeoutExceeded, op.Kind(), t))
		defer cancel()
	}

	if err := op.Invoke(ctx, ec); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	return nil
}

func executeScope(ctx context.Context, ec *ExecContext, s Scope) (err error) {
	ec.PushStage(s.ProgressMessage())
	defer ec.PopStage()

	if err := s.Enter(ctx, ec); err != nil {
		return err
	}

	defer func() {
		err = s.Exit(ctx, ec, err)
	}()

	for _, c := range s.Children() {
		if err := Execute(ctx, ec, c); err != nil {
			return err
		}
	}

	return nil
}
