// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{EventStarted, "started"},
		{EventCompleted, "completed"},
		{EventFailed, "failed"},
		{EventSkipped, "skipped"},
		{EventType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestChannelReporter_DeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewChannelReporter(context.Background(), 10)

	var (
		mu  sync.Mutex
		got []int
	)

	r.Listen(ListenerFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, e.Number)
	}))

	for i := 1; i <= 3; i++ {
		r.Report(Event{Type: EventStarted, Number: i, Timestamp: time.Now()})
	}

	r.Close()

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestChannelReporter_ReportAfterCloseIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewChannelReporter(context.Background(), 1)
	r.Close()
	r.Close()

	assert.NotPanics(t, func() { r.Report(Event{}) })
}

func TestChannelReporter_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewChannelReporter(context.Background(), 1)
	r.Report(Event{Number: 1})
	r.Report(Event{Number: 2})

	assert.Len(t, r.Events(), 1)
	r.Close()
}

func TestLogListener(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogListener(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.OnEvent(Event{Type: EventStarted, Running: 3, Total: 12, Message: "Copy a to b"})
	l.OnEvent(Event{Type: EventFailed, Running: 4, Total: 12, Message: "Remove c", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "Progress 3 of 12: Copy a to b")
	assert.Contains(t, out, "Failed 4 of 12: Remove c")
	assert.Contains(t, out, "boom")
}

func TestNullReporter(t *testing.T) {
	r := NewNullReporter()
	assert.NotPanics(t, func() {
		r.Report(Event{})
		r.Close()
	})
}
