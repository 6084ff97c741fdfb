// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Common parameter names accepted by every kind.
const (
	ParamIgnoreErrors = "ignore_errors"
	ParamEssential    = "essential"
)

var (
	// ErrInvalidParams is returned when parameters fail validation.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrUnknownKind is returned for kinds that are not registered.
	ErrUnknownKind = errors.New("unknown operation kind")
	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("operation kind already registered")
)

// Definition describes an operation kind.
type Definition struct {
	// Kind is the block name in program text.
	Kind        string
	Description string
	// Params lists the kind specific parameters in rendering order.
	Params []ParamSpec
	// Scoped kinds own nested operations.
	Scoped bool
	// Essential is the default of the essential parameter.
	Essential bool
	// NoProgress kinds do not count towards the progress total.
	NoProgress bool
	// Platforms limits the kind to some platforms. Zero means all.
	Platforms Platform
	// New builds the operation from a validated Base.
	New func(b Base) (Operation, error)
}

// Spec returns the parameter spec for name, common parameters included.
func (d *Definition) Spec(name string) (ParamSpec, bool) {
	for _, s := range d.AllParams() {
		if s.Name == name {
			return s, true
		}
	}

	return ParamSpec{}, false
}

// AllParams returns the kind specific parameters followed by the common ones.
func (d *Definition) AllParams() []ParamSpec {
	return append(slices.Clone(d.Params),
		ParamSpec{Name: ParamIgnoreErrors, Type: TypeStringList, Default: []string{}, Doc: "error kinds to absorb"},
		ParamSpec{Name: ParamEssential, Type: TypeBool, Default: d.Essential, Doc: "keep the enclosing scope when rendering"},
	)
}

// Registry maps kind names to definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition.
func (r *Registry) Register(d Definition) error {
	if d.Kind == "" || d.New == nil {
		return fmt.Errorf("%w: definition needs a kind and a constructor", ErrInvalidParams)
	}

	if _, ok := r.defs[d.Kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, d.Kind)
	}

	d.Params = slices.Clone(d.Params)

	for i, s := range d.Params {
		if s.Required {
			continue
		}

		if s.Default == nil {
			s.Default = s.Type.zero()
		}

		def, err := Normalize(s.Type, s.Default)
		if err != nil {
			return fmt.Errorf("%s.%s default: %w", d.Kind, s.Name, err)
		}

		d.Params[i].Default = def
	}

	r.defs[d.Kind] = &d

	return nil
}

// MustRegister is Register that panics on error, for use at start up.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the definition of kind.
func (r *Registry) Lookup(kind string) (*Definition, bool) {
	d, ok := r.defs[kind]
	return d, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	return slices.Sorted(maps.Keys(r.defs))
}

// New validates raw parameters and constructs an operation of kind.
// Unknown parameters, missing required parameters and values of the wrong type fail with ErrInvalidParams.
func (r *Registry) New(kind string, raw map[string]any) (Operation, error) {
	d, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	specs := d.AllParams()
	params := make(Params, len(specs))

	for name := range raw {
		if !slices.ContainsFunc(specs, func(s ParamSpec) bool { return s.Name == name }) {
			return nil, fmt.Errorf("%w: %s: unknown parameter %q", ErrInvalidParams, kind, name)
		}
	}

	for _, s := range specs {
		v, ok := raw[s.Name]
		if !ok {
			if s.Required {
				return nil, fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidParams, kind, s.Name)
			}

			v = s.Default
		}

		nv, err := Normalize(s.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", kind, s.Name, err)
		}

		params[s.Name] = nv
	}

	ignore, err := ParseIgnoreSet(params.Strings(ParamIgnoreErrors))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	op, err := d.New(Base{def: d, params: params, ignore: ignore})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	return op, nil
}

// MustNew is New that panics on error, for building plans from literals.
func (r *Registry) MustNew(kind string, raw map[string]any) Operation {
	op, err := r.New(kind, raw)
	if err != nil {
		panic(err)
	}

	return op
}
