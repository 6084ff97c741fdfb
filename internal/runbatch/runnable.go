// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
)

// Runnable is something that can be run as part of a batch, either a command or a nested batch.
type Runnable interface {
	// Run executes the command or batch and returns the results.
	// It must stop any process it started when ctx is cancelled.
	Run(context.Context) Results
	// SetCwd sets the working directory, unless one is already set.
	SetCwd(string)
	// InheritEnv adds environment variables without overwriting existing ones.
	InheritEnv(map[string]string)
	// GetLabel returns the label of the command or batch.
	GetLabel() string
	// GetParent returns the enclosing batch, if any.
	GetParent() Runnable
	// SetParent sets the enclosing batch.
	SetParent(Runnable)
}
