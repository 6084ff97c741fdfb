// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"slices"
	"strings"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

// Prune removes scopes that have no essential descendant and no effect of their own.
// Emptiness propagates upwards: a scope holding only prunable scopes is prunable.
// It reports whether the remaining operations include an essential one.
// The input operations are not modified.
func Prune(ops []operation.Operation) ([]operation.Operation, bool) {
	return prune(ops)
}

func prune(ops []operation.Operation) ([]operation.Operation, bool) {
	out := make([]operation.Operation, 0, len(ops))
	essential := false

	for _, op := range ops {
		s, ok := op.(operation.Scope)
		if !ok {
			out = append(out, op)
			essential = essential || op.Essential()

			continue
		}

		children, childEssential := prune(s.Children())
		if !childEssential && !s.Essential() && !s.HasOwnEffect() {
			continue
		}

		ns, err := operation.WithChildren(s, children)
		if err != nil {
			// s was built from the same parameters.
			ns = s
		}

		out = append(out, ns)
		essential = true
	}

	return out, essential
}

// filter drops operations that do not apply to target, descending into scopes.
func filter(ops []operation.Operation, target operation.Platform) []operation.Operation {
	out := make([]operation.Operation, 0, len(ops))

	for _, op := range ops {
		if !op.Platforms().Has(target) {
			continue
		}

		if s, ok := op.(operation.Scope); ok {
			ns, err := operation.WithChildren(s, filter(s.Children(), target))
			if err == nil {
				op = ns
			}
		}

		out = append(out, op)
	}

	return out
}

// sortOps sorts ops by their rendered text.
func sortOps(ops []operation.Operation) {
	slices.SortStableFunc(ops, func(a, b operation.Operation) int {
		return strings.Compare(operation.Describe(a), operation.Describe(b))
	})
}
