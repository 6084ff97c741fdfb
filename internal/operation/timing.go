// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"
)

// Timing is the elapsed time of one executed operation.
type Timing struct {
	// Number is the progress number of the operation, 0 for operations that do not count towards progress.
	Number  int
	Message string
	Elapsed time.Duration
	// Scope is set for scoped operations, whose time includes their children.
	Scope bool
}

// WriteTimingSummary writes the top slowest timings, slowest first. top <= 0 writes all of them.
func WriteTimingSummary(w io.Writer, timings []Timing, top int) error {
	sorted := slices.Clone(timings)
	slices.SortStableFunc(sorted, func(a, b Timing) int {
		return cmp.Compare(b.Elapsed, a.Elapsed)
	})

	if top > 0 && len(sorted) > top {
		sorted = sorted[:top]
	}

	var total time.Duration
	for _, t := range timings {
		if t.Scope {
			continue
		}

		total += t.Elapsed
	}

	if _, err := fmt.Fprintf(w, "Timing summary (%d operations, %s):\n", len(timings), total.Round(time.Millisecond)); err != nil {
		return err
	}

	for _, t := range sorted {
		if _, err := fmt.Fprintf(w, "  %10s  %-6s %s\n", t.Elapsed.Round(time.Millisecond), timingLabel(t), t.Message); err != nil {
			return err
		}
	}

	return nil
}

func timingLabel(t Timing) string {
	switch {
	case t.Scope:
		return "scope"
	case t.Number == 0:
		return "-"
	default:
		return fmt.Sprintf("#%d", t.Number)
	}
}
