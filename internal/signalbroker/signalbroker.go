// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker listens for OS signals that should terminate the process.
// By default it listens for SIGINT, SIGTERM, SIGQUIT, SIGHUP and SIGABRT.
//
// Watch turns a received signal into a context cancellation whose cause is a *SignalError,
// which is the same teardown path that an external abort takes.
package signalbroker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

var termSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	syscall.SIGHUP,
	syscall.SIGABRT,
}

// SignalError is the cancellation cause recorded when a termination signal arrives.
type SignalError struct {
	Signal os.Signal
}

// Error implements the error interface.
func (e *SignalError) Error() string {
	return fmt.Sprintf("terminated by signal: %s", e.Signal)
}

// New creates a channel that receives the termination signals.
// Stop must be called to release the channel.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "creating signal broker", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop stops delivery to ch and closes it.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
	close(ch)
}
