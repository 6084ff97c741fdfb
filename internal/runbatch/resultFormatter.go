// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/color"
)

// StopKind classifies how a command or batch ended.
type StopKind int

const (
	// StopNone means the command succeeded.
	StopNone StopKind = iota
	// StopFailed means the command failed without exiting, for example it could not start.
	StopFailed
	// StopExit means the process exited with a non-zero code.
	StopExit
	// StopTimeout means the process was killed when its deadline passed.
	StopTimeout
	// StopAborted means the process was killed because the abort file appeared.
	StopAborted
	// StopSignal means the process was killed because the program received a signal.
	StopSignal
	// StopSibling means the process was killed because another process of its wave failed.
	StopSibling
	// StopSkipped means the command never started.
	StopSkipped
)

type stopMark struct {
	glyph  string
	colour color.Code
	note   string
}

var stopMarks = [...]stopMark{
	StopNone:    {"✓", color.FgGreen, ""},
	StopFailed:  {"✗", color.FgRed, ""},
	StopExit:    {"✗", color.FgRed, "exit code"},
	StopTimeout: {"⏱", color.FgRed, "timed out"},
	StopAborted: {"■", color.FgMagenta, "aborted"},
	StopSignal:  {"■", color.FgMagenta, "interrupted"},
	StopSibling: {"○", color.FgYellow, "stopped, sibling failed"},
	StopSkipped: {"~", color.FgYellow, "not started"},
}

// Stop returns how r ended. Stops caused by the environment take precedence over the exit code.
func (r *Result) Stop() StopKind {
	switch {
	case r.Status == ResultStatusSkipped:
		return StopSkipped
	case r.Error == nil && r.ExitCode == 0:
		return StopNone
	case errors.Is(r.Error, ErrAborted):
		return StopAborted
	case errors.Is(r.Error, ErrSignalReceived):
		return StopSignal
	case errors.Is(r.Error, ErrTimeoutExceeded):
		return StopTimeout
	case errors.Is(r.Error, ErrSiblingFailed):
		return StopSibling
	case errors.Is(r.Error, ErrNonZeroExit), r.ExitCode > 0:
		return StopExit
	default:
		return StopFailed
	}
}

// WriteResults writes the result tree to w, one line per wave or command.
// Output of a command is only shown when it did not succeed.
func WriteResults(w io.Writer, results Results) error {
	for _, r := range results {
		if err := writeResult(w, r, ""); err != nil {
			return err
		}
	}

	return nil
}

func writeResult(w io.Writer, r *Result, indent string) error {
	kind := r.Stop()
	mark := stopMarks[kind]

	label := r.Label
	if label == "" {
		label = "[unnamed]"
	}

	var line strings.Builder

	line.WriteString(indent)
	line.WriteString(color.Colorize(mark.glyph, mark.colour))
	line.WriteString(" ")
	line.WriteString(color.Colorize(label, color.Bold, mark.colour))

	switch {
	case len(r.Children) > 0:
		line.WriteString(" (" + tally(r.Children) + ")")
	case kind == StopExit:
		fmt.Fprintf(&line, " (%s %d)", mark.note, r.ExitCode)
	case mark.note != "":
		line.WriteString(" (" + mark.note + ")")
	}

	if r.Duration > 0 {
		fmt.Fprintf(&line, " [%s]", r.Duration.Round(time.Millisecond))
	}

	line.WriteString("\n")

	// The failure message is only useful when the marker does not already say it.
	if kind == StopFailed && len(r.Children) == 0 && r.Error != nil {
		line.WriteString(indent + "  " + color.Colorize("➜ Error:", color.FgRed) + " " + r.Error.Error() + "\n")
	}

	if kind != StopNone && kind != StopSkipped && len(r.Children) == 0 {
		out := r.StdErr
		if len(out) == 0 {
			out = r.StdOut
		}

		if len(out) > 0 {
			line.WriteString(formatOutput(out, indent+"     "))
		}
	}

	if _, err := io.WriteString(w, line.String()); err != nil {
		return err //nolint:wrapcheck
	}

	for _, child := range r.Children {
		if err := writeResult(w, child, indent+"  "); err != nil {
			return err
		}
	}

	return nil
}

// tally summarises the direct children of a batch, such as the commands of a wave.
func tally(children Results) string {
	var counts [len(stopMarks)]int
	for _, c := range children {
		counts[c.Stop()]++
	}

	noun := "command"
	if slices.ContainsFunc(children, func(c *Result) bool { return len(c.Children) > 0 }) {
		noun = "wave"
	}

	if len(children) != 1 {
		noun += "s"
	}

	parts := []string{fmt.Sprintf("%d %s", len(children), noun)}

	if n := len(children) - counts[StopNone] - counts[StopSibling] - counts[StopSkipped]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}

	if n := counts[StopSibling]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d stopped", n))
	}

	if n := counts[StopSkipped]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d not started", n))
	}

	return strings.Join(parts, ", ")
}

// formatOutput indents every non-empty line of output.
func formatOutput(output []byte, indent string) string {
	sb := strings.Builder{}

	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		if line == "" {
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
