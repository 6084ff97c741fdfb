// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

// Watch cancels the context with a *SignalError on the first signal received.
// A second signal of the same type exits the process immediately with exitCode,
// in case teardown itself hangs.
// Watch returns when sigCh is closed or ctx is done.
func Watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelCauseFunc, exitCode int) {
	seen := make(map[os.Signal]struct{})
	done := ctx.Done()

	for {
		select {
		case <-done:
			if len(seen) == 0 {
				return
			}

			// Our own cancellation; keep watching for a second signal.
			done = nil
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Logger(ctx).Error("watchdog", "detail", "second signal received, exiting", "signal", sig.String())
				exit(exitCode)

				return
			}

			seen[sig] = struct{}{}

			ctxlog.Logger(ctx).Warn("watchdog", "detail", "signal received, tearing down", "signal", sig.String())
			cancel(&SignalError{Signal: sig})
		}
	}
}

// exit is a variable so tests can observe forced exits.
var exit = os.Exit
