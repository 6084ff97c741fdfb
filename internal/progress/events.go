// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event represents a real-time update from plan execution.
type Event struct {
	Type      EventType // Event type indicating what happened
	Number    int       // Progress number of the unit of work, monotonically increasing within a run
	Running   int       // Running progress count after this event
	Total     int       // Total progress count of the run
	Message   string    // Human-readable one line description
	Stages    []string  // Stage stack at the time of the event
	Timestamp time.Time // When the event occurred
	Err       error     // Set for EventFailed
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventStarted indicates a unit of work has begun execution.
	EventStarted EventType = iota
	// EventCompleted indicates successful completion.
	EventCompleted
	// EventFailed indicates the unit of work failed.
	EventFailed
	// EventSkipped indicates the unit of work was skipped, e.g. not for this platform or already done.
	EventSkipped
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events.
type Listener interface {
	// OnEvent is called for every event received.
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(e Event) {
	f(e)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (NullReporter) Report(Event) {}

// Close implements Reporter.Close by doing nothing.
func (NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return NullReporter{}
}
