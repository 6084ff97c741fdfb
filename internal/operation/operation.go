// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Operation is a single serializable unit of work.
// Every implementation embeds Base, which makes the set of operations closed over registered kinds.
type Operation interface {
	// Kind is the registered kind name.
	Kind() string
	// Definition returns the kind definition the operation was built from.
	Definition() *Definition
	// Params returns a copy of the complete parameter set, defaults included.
	Params() Params
	// Essential operations keep their enclosing scopes when rendering.
	Essential() bool
	// Scoped reports whether the operation owns nested operations.
	Scoped() bool
	// OwnProgressCount is the number of progress ticks the operation itself represents.
	OwnProgressCount() int
	// IgnoreErrors returns the error classes absorbed by the operation.
	IgnoreErrors() IgnoreSet
	// ProgressMessage is a one line description.
	ProgressMessage() string
	// Platforms is the set of platforms the operation applies to.
	Platforms() Platform
	// Invoke performs the action.
	Invoke(ctx context.Context, ec *ExecContext) error

	base() Base
}

// Scope is an operation with entry and exit effects around nested operations.
type Scope interface {
	Operation
	Children() []Operation
	Append(ops ...Operation)
	// Enter runs before the children.
	Enter(ctx context.Context, ec *ExecContext) error
	// Exit runs after the children, if Enter succeeded. err is the error propagating from the children.
	Exit(ctx context.Context, ec *ExecContext, err error) error
	// HasOwnEffect reports whether the scope does visible work even when it has no children.
	HasOwnEffect() bool

	setChildren(ops []Operation)
}

// Base carries the state shared by all operations.
type Base struct {
	def    *Definition
	params Params
	ignore IgnoreSet
}

func (b Base) base() Base { return b }

// Kind implements Operation.
func (b Base) Kind() string { return b.def.Kind }

// Definition implements Operation.
func (b Base) Definition() *Definition { return b.def }

// Params implements Operation.
func (b Base) Params() Params { return maps.Clone(b.params) }

// P returns the parameters without copying them. Callers must not modify the result.
func (b Base) P() Params { return b.params }

// Essential implements Operation.
func (b Base) Essential() bool { return b.params.Bool(ParamEssential) }

// Scoped implements Operation.
func (b Base) Scoped() bool { return b.def.Scoped }

// OwnProgressCount implements Operation.
func (b Base) OwnProgressCount() int {
	if b.def.Scoped || b.def.NoProgress {
		return 0
	}

	return 1
}

// IgnoreErrors implements Operation.
func (b Base) IgnoreErrors() IgnoreSet { return slices.Clone(b.ignore) }

// Platforms implements Operation.
func (b Base) Platforms() Platform {
	if b.def.Platforms == 0 {
		return AllPlatforms
	}

	return b.def.Platforms
}

// ProgressMessage implements Operation. It lists the kind and its required parameters.
func (b Base) ProgressMessage() string {
	parts := []string{b.def.Kind}

	for _, s := range b.def.Params {
		if !s.Required {
			continue
		}

		parts = append(parts, fmt.Sprint(b.params[s.Name]))
	}

	return strings.Join(parts, " ")
}

// ScopeBase is embedded by scoped operations.
type ScopeBase struct {
	Base
	children []Operation
}

// NewScopeBase returns a ScopeBase with no children.
func NewScopeBase(b Base) ScopeBase {
	return ScopeBase{Base: b}
}

// Children implements Scope.
func (s *ScopeBase) Children() []Operation { return slices.Clone(s.children) }

// Append implements Scope.
func (s *ScopeBase) Append(ops ...Operation) { s.children = append(s.children, ops...) }

func (s *ScopeBase) setChildren(ops []Operation) { s.children = ops }

// Enter implements Scope.
func (s *ScopeBase) Enter(context.Context, *ExecContext) error { return nil }

// Exit implements Scope.
func (s *ScopeBase) Exit(_ context.Context, _ *ExecContext, err error) error { return err }

// HasOwnEffect implements Scope.
func (s *ScopeBase) HasOwnEffect() bool { return false }

// Invoke implements Operation. Scopes do their work in Enter and Exit.
func (s *ScopeBase) Invoke(context.Context, *ExecContext) error { return nil }

// WithChildren returns a new scope with the same kind and parameters holding children.
// The original scope is not modified.
func WithChildren(s Scope, children []Operation) (Scope, error) {
	b := s.base()

	op, err := b.def.New(b)
	if err != nil {
		return nil, err
	}

	ns, ok := op.(Scope)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a scope", ErrInvalidParams, b.def.Kind)
	}

	ns.setChildren(slices.Clone(children))

	return ns, nil
}

// Equal reports whether two operations have the same kind, parameters and children.
func Equal(a, b Operation) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Kind() != b.Kind() || !a.base().params.Equal(b.base().params) {
		return false
	}

	sa, aok := a.(Scope)
	sb, bok := b.(Scope)

	if aok != bok {
		return false
	}

	if !aok {
		return true
	}

	return slices.EqualFunc(sa.Children(), sb.Children(), Equal)
}

// ProgressCount returns the progress ticks of op including all descendants.
func ProgressCount(op Operation) int {
	n := op.OwnProgressCount()

	if s, ok := op.(Scope); ok {
		for _, c := range s.Children() {
			n += ProgressCount(c)
		}
	}

	return n
}
