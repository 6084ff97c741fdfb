// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_FirstSignalCancelsWithCause(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel, 3)
	}()

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be cancelled after first signal")
	}

	var sigErr *SignalError

	require.ErrorAs(t, context.Cause(ctx), &sigErr)
	assert.Equal(t, os.Interrupt, sigErr.Signal)

	close(sigCh)
	wg.Wait()
}

func TestWatch_SecondSignalExits(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	exited := make(chan int, 1)
	stubs := gostub.Stub(&exit, func(code int) { exited <- code })

	defer stubs.Reset()

	sigCh := make(chan os.Signal, 2)
	done := make(chan struct{})

	go func() {
		defer close(done)
		Watch(ctx, sigCh, cancel, 3)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	select {
	case code := <-exited:
		assert.Equal(t, 3, code)
	case <-time.After(time.Second):
		t.Fatal("expected forced exit on second signal")
	}

	<-done
}

func TestWatch_ClosedChannelReturns(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal)
	close(sigCh)

	Watch(ctx, sigCh, cancel, 3)
	assert.NoError(t, ctx.Err())
}
