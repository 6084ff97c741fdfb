// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/stevedore/internal/signalbroker"
)

var (
	// ErrAborted is the cancellation cause used when the abort file disappears.
	ErrAborted = errors.New("aborted")
	// ErrSignalReceived is returned for processes stopped because the program received a termination signal.
	ErrSignalReceived = errors.New("signal received")
	// ErrTimeoutExceeded is returned when the command exceeds the context deadline.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrCancelled is returned for processes stopped by any other cancellation.
	ErrCancelled = errors.New("cancelled")
	// ErrSiblingFailed is returned for processes stopped because another process of the same wave failed.
	ErrSiblingFailed = errors.New("stopped after sibling failure")
	// ErrSkipOnError is set on commands that never started because an earlier wave failed.
	ErrSkipOnError = errors.New("skipped due to previous error")
)

// Process exit codes for the different failure kinds.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitAborted = 2
	ExitSignal  = 3
)

// ExitCodeFor maps an error to the exit code of the program.
func ExitCodeFor(err error) int {
	var sig *signalbroker.SignalError

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrAborted):
		return ExitAborted
	case errors.Is(err, ErrSignalReceived), errors.As(err, &sig):
		return ExitSignal
	default:
		return ExitFailure
	}
}

// causeError turns the cancellation cause of ctx into the error reported for a stopped process.
func causeError(ctx context.Context) error {
	cause := context.Cause(ctx)

	var sig *signalbroker.SignalError

	switch {
	case errors.Is(cause, ErrAborted), errors.Is(cause, ErrSiblingFailed), errors.Is(cause, ErrTimeoutExceeded):
		return cause
	case errors.As(cause, &sig):
		return fmt.Errorf("%w: %w", ErrSignalReceived, cause)
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeoutExceeded, cause)
	default:
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
}
