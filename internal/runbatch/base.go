// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"maps"
)

// BaseCommand holds the fields common to commands and batches.
// It should be embedded in other command types.
type BaseCommand struct {
	Label  string            // Optional label for the command
	Cwd    string            // The working directory for the command
	Env    map[string]string // Environment variables added to the inherited environment
	parent Runnable
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(label, cwd string, env map[string]string) *BaseCommand {
	if env == nil {
		env = make(map[string]string)
	}

	return &BaseCommand{
		Label: label,
		Cwd:   cwd,
		Env:   env,
	}
}

// GetLabel returns the label of the command.
func (c *BaseCommand) GetLabel() string {
	if c.Label == "" {
		return "Command"
	}

	return c.Label
}

// GetParent returns the parent for this command or batch.
func (c *BaseCommand) GetParent() Runnable {
	return c.parent
}

// SetParent sets the parent for this command or batch.
func (c *BaseCommand) SetParent(parent Runnable) {
	c.parent = parent
}

// SetCwd sets the working directory if none is set yet.
func (c *BaseCommand) SetCwd(cwd string) {
	if c.Cwd == "" {
		c.Cwd = cwd
	}
}

// InheritEnv adds environment variables that are not already set.
func (c *BaseCommand) InheritEnv(env map[string]string) {
	if len(c.Env) == 0 {
		c.Env = maps.Clone(env)
		return
	}

	for k, v := range env {
		if _, ok := c.Env[k]; !ok {
			c.Env[k] = v
		}
	}
}
