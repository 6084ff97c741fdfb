// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"errors"
	"io"
	"time"
)

// ErrResultChildrenHasError is set on a batch result when one of its children failed.
var ErrResultChildrenHasError = errors.New("result has children with errors")

// ResultStatus is the outcome of a command or batch.
type ResultStatus int

const (
	// ResultStatusUnknown is the zero value.
	ResultStatusUnknown ResultStatus = iota
	// ResultStatusSuccess means the command exited zero, or every child of a batch succeeded.
	ResultStatusSuccess
	// ResultStatusError means the command failed or was stopped.
	ResultStatusError
	// ResultStatusSkipped means the command never started because an earlier wave failed.
	ResultStatusSkipped
)

// Result represents the outcome of running a command or batch.
type Result struct {
	ExitCode int           // Exit code of the command, -1 when it did not exit by itself
	Error    error         // Error, if any
	StdOut   []byte        // Output from the command
	StdErr   []byte        // Error output from the command
	Label    string        // Label of the command or batch
	Status   ResultStatus  // Outcome
	Duration time.Duration // Wall time of the command or batch
	Children Results       // Nested results for batches
}

// Results is a slice of Result pointers, used to represent multiple results.
type Results []*Result

// HasError reports whether any result in the tree failed.
func (r Results) HasError() bool {
	for _, v := range r {
		if (v.Error != nil && v.Status != ResultStatusSkipped) || v.ExitCode != 0 {
			return true
		}

		if v.Children.HasError() {
			return true
		}
	}

	return false
}

// FirstError returns the error of the first failed command, depth first.
// Commands that were only stopped because a sibling failed are reported last.
func (r Results) FirstError() error {
	var fallback error

	for _, v := range r.Leaves() {
		if v.Error == nil || v.Status == ResultStatusSkipped {
			continue
		}

		if errors.Is(v.Error, ErrSiblingFailed) {
			if fallback == nil {
				fallback = v.Error
			}

			continue
		}

		return v.Error
	}

	return fallback
}

// Leaves returns the results of individual commands, depth first.
func (r Results) Leaves() Results {
	var out Results

	for _, v := range r {
		if len(v.Children) == 0 {
			out = append(out, v)
			continue
		}

		out = append(out, v.Children.Leaves()...)
	}

	return out
}

// Write outputs the result tree to w.
func (r Results) Write(w io.Writer) error {
	return WriteResults(w, r)
}
