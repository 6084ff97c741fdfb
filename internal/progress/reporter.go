// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ChannelReporter implements Reporter using a buffered channel.
// Events are dropped rather than blocking the sender when the buffer is full.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter.Report.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	select {
	case cr.ch <- event:
	default:
		// Channel is full, drop the event to avoid blocking
	}
}

// Close implements Reporter.Close.
// It closes the channel, waits for listeners to drain it and cancels the context.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.mu.Lock()
		cr.closed = true
		close(cr.ch)
		cr.mu.Unlock()

		cr.wg.Wait()
		cr.cancel()
	})
}

// Listen forwards events to listener in a background goroutine until the reporter is closed.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for event := range cr.ch {
			listener.OnEvent(event)
		}
	}()
}

// Events returns a read-only channel of progress events.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// NewLogListener returns a listener that writes progress lines to logger.
// Started events log at info level, failures at error level.
func NewLogListener(logger *slog.Logger) Listener {
	return ListenerFunc(func(e Event) {
		switch e.Type {
		case EventStarted:
			logger.Info(fmt.Sprintf("Progress %d of %d: %s", e.Running, e.Total, e.Message))
		case EventFailed:
			logger.Error(fmt.Sprintf("Failed %d of %d: %s", e.Running, e.Total, e.Message), "error", e.Err)
		case EventSkipped:
			logger.Debug(fmt.Sprintf("Skipped: %s", e.Message))
		case EventCompleted:
			logger.Debug(fmt.Sprintf("Done: %s", e.Message), "number", e.Number)
		}
	})
}
