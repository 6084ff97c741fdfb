// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"errors"
	"fmt"
	"slices"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

// Sections are the section names in execution order.
var Sections = []string{
	"pre", "assign", "begin", "links", "upload", "sync", "post-sync",
	"copy", "post-copy", "remove", "admin", "end", "post",
}

// AssignSection holds variable assignments. Its direct children are sorted when rendering.
const AssignSection = "assign"

var (
	// ErrInvalidSection is returned for names that are not in Sections.
	ErrInvalidSection = errors.New("invalid section")
	// ErrNoSection is returned by Add before a section has been selected.
	ErrNoSection = errors.New("no current section")
	// ErrDetached is returned by Add while a detached accumulation is in progress.
	ErrDetached = errors.New("accumulator is detached")
	// ErrNoOpenScope is returned by CloseScope when no scope is open.
	ErrNoOpenScope = errors.New("no open scope")
)

// Section is a named, ordered list of operations.
type Section struct {
	Name string
	Ops  []operation.Operation
}

// Accumulator collects operations into sections.
type Accumulator struct {
	sections map[string][]operation.Operation
	current  string
	open     []operation.Scope
	detached bool
}

// New returns an empty accumulator with no current section.
func New() *Accumulator {
	return &Accumulator{sections: make(map[string][]operation.Operation)}
}

// IsSection reports whether name is a valid section name.
func IsSection(name string) bool {
	return slices.Contains(Sections, name)
}

// SetCurrentSection makes name the target of subsequent Add calls. Open scopes are closed.
func (a *Accumulator) SetCurrentSection(name string) error {
	if !IsSection(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSection, name)
	}

	if _, ok := a.sections[name]; !ok {
		a.sections[name] = nil
	}

	a.current = name
	a.open = nil

	return nil
}

// CurrentSection returns the name of the current section.
func (a *Accumulator) CurrentSection() string {
	return a.current
}

// Add appends ops to the innermost open scope, or to the current section.
func (a *Accumulator) Add(ops ...operation.Operation) error {
	if a.detached {
		return ErrDetached
	}

	if a.current == "" {
		return ErrNoSection
	}

	if n := len(a.open); n > 0 {
		a.open[n-1].Append(ops...)
		return nil
	}

	a.sections[a.current] = append(a.sections[a.current], ops...)

	return nil
}

// OpenScope adds s and makes it the target of subsequent Add calls until CloseScope.
func (a *Accumulator) OpenScope(s operation.Scope) error {
	if err := a.Add(s); err != nil {
		return err
	}

	a.open = append(a.open, s)

	return nil
}

// CloseScope ends the innermost open scope.
func (a *Accumulator) CloseScope() error {
	if len(a.open) == 0 {
		return ErrNoOpenScope
	}

	a.open = a.open[:len(a.open)-1]

	return nil
}

// Detached collects the operations fn adds to a fresh accumulator and returns them.
// While fn runs, Add on a fails with ErrDetached.
func (a *Accumulator) Detached(fn func(sub *Accumulator) error) ([]operation.Operation, error) {
	if a.detached {
		return nil, ErrDetached
	}

	a.detached = true
	defer func() { a.detached = false }()

	sub := New()
	sub.current = AssignSection
	sub.sections[sub.current] = nil

	if err := fn(sub); err != nil {
		return nil, err
	}

	return sub.sections[sub.current], nil
}

// Reset removes every section.
func (a *Accumulator) Reset() {
	a.sections = make(map[string][]operation.Operation)
	a.current = ""
	a.open = nil
}

// Section returns the operations in section name.
func (a *Accumulator) Section(name string) []operation.Operation {
	return slices.Clone(a.sections[name])
}

// Sections returns the non-empty sections in execution order, as added.
func (a *Accumulator) Sections() []Section {
	var out []Section

	for _, name := range Sections {
		if ops := a.sections[name]; len(ops) > 0 {
			out = append(out, Section{Name: name, Ops: slices.Clone(ops)})
		}
	}

	return out
}

// Compile returns the sections as they run on target: operations for other platforms are dropped,
// empty scopes are pruned and the assign section is sorted.
// Sections left empty are omitted.
func (a *Accumulator) Compile(target operation.Platform) []Section {
	var out []Section

	for _, s := range a.Sections() {
		ops, _ := prune(filter(s.Ops, target))
		if len(ops) == 0 {
			continue
		}

		if s.Name == AssignSection {
			sortOps(ops)
		}

		out = append(out, Section{Name: s.Name, Ops: ops})
	}

	return out
}

// TotalProgressCount returns the progress ticks of the plan as compiled for target.
func (a *Accumulator) TotalProgressCount(target operation.Platform) int {
	n := 0

	for _, s := range a.Compile(target) {
		for _, op := range s.Ops {
			n += operation.ProgressCount(op)
		}
	}

	return n
}
