// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/config"
	"github.com/matt-FFFFFF/stevedore/internal/progress"
)

// ExecContext is the state threaded through one execution run.
type ExecContext struct {
	Config   *config.Config
	Reporter progress.Reporter
	// Platform is the platform being executed on.
	Platform Platform
	// TotalProgress is the number of progress ticks the whole run represents.
	TotalProgress int
	// RunningProgress counts the ticks done so far.
	RunningProgress int
	// Timings holds the elapsed time of every executed operation.
	Timings []Timing
	// Stdout receives the output of echo and progress operations.
	Stdout io.Writer
	// Stderr receives the error output of processes.
	Stderr io.Writer

	vars     map[string]string
	stages   []string
	cwd      []string
	lastStep string
	now      func() time.Time
}

// NewExecContext returns a context rooted at the process working directory.
func NewExecContext(cfg *config.Config) *ExecContext {
	if cfg == nil {
		cfg = config.Default()
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = string(filepath.Separator)
	}

	return &ExecContext{
		Config:   cfg,
		Reporter: progress.NewNullReporter(),
		Platform: CurrentPlatform(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		vars:     make(map[string]string),
		cwd:      []string{wd},
		now:      time.Now,
	}
}

// Stages returns a copy of the stage stack, outermost first.
func (ec *ExecContext) Stages() []string {
	return slices.Clone(ec.stages)
}

// PushStage adds name to the stage stack.
func (ec *ExecContext) PushStage(name string) {
	ec.stages = append(ec.stages, name)
}

// PopStage removes the innermost stage.
func (ec *ExecContext) PopStage() {
	if len(ec.stages) > 0 {
		ec.stages = ec.stages[:len(ec.stages)-1]
	}
}

// Cwd returns the current working directory of the run.
func (ec *ExecContext) Cwd() string {
	return ec.cwd[len(ec.cwd)-1]
}

// PushCwd changes the working directory of the run. Relative dirs resolve against the current one.
func (ec *ExecContext) PushCwd(dir string) {
	ec.cwd = append(ec.cwd, ec.Abs(dir))
}

// PopCwd restores the previous working directory. The root directory is never popped.
func (ec *ExecContext) PopCwd() {
	if len(ec.cwd) > 1 {
		ec.cwd = ec.cwd[:len(ec.cwd)-1]
	}
}

// Abs resolves p against the current working directory.
func (ec *ExecContext) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(ec.Cwd(), p)
}

// Step records the step an operation is about to attempt, reported if it fails.
func (ec *ExecContext) Step(step string) {
	ec.lastStep = step
}

// LastStep returns the most recent step.
func (ec *ExecContext) LastStep() string {
	return ec.lastStep
}

// SetVar assigns a variable. Variables are exported to child processes.
func (ec *ExecContext) SetVar(name, value string) {
	ec.vars[name] = value
}

// Var returns an assigned variable.
func (ec *ExecContext) Var(name string) (string, bool) {
	v, ok := ec.vars[name]
	return v, ok
}

// Vars returns a copy of the assigned variables.
func (ec *ExecContext) Vars() map[string]string {
	return maps.Clone(ec.vars)
}

func (ec *ExecContext) report(t progress.EventType, op Operation, number int, err error) {
	ec.Reporter.Report(progress.Event{
		Type:      t,
		Number:    number,
		Running:   ec.RunningProgress,
		Total:     ec.TotalProgress,
		Message:   op.ProgressMessage(),
		Stages:    ec.Stages(),
		Timestamp: ec.now(),
		Err:       err,
	})
}
