// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"syscall"
)

// IgnoreKind names a class of errors an operation may absorb.
type IgnoreKind string

// Ignorable error classes.
const (
	IgnoreNotFound    IgnoreKind = "not_found"
	IgnorePermission  IgnoreKind = "permission"
	IgnoreExists      IgnoreKind = "exists"
	IgnoreCrossDevice IgnoreKind = "cross_device"
	IgnoreNotEmpty    IgnoreKind = "not_empty"
	IgnoreAny         IgnoreKind = "any"
)

var ignoreKinds = []IgnoreKind{
	IgnoreNotFound, IgnorePermission, IgnoreExists, IgnoreCrossDevice, IgnoreNotEmpty, IgnoreAny,
}

// IgnoreSet is the set of error classes an operation absorbs.
type IgnoreSet []IgnoreKind

// ParseIgnoreSet validates names and returns them as an IgnoreSet.
func ParseIgnoreSet(names []string) (IgnoreSet, error) {
	set := make(IgnoreSet, 0, len(names))

	for _, n := range names {
		k := IgnoreKind(n)
		if !slices.Contains(ignoreKinds, k) {
			return nil, fmt.Errorf("%w: unknown ignore_errors kind %q", ErrInvalidParams, n)
		}

		set = append(set, k)
	}

	return set, nil
}

// Matches reports whether err belongs to one of the classes in the set.
// Validation errors are never matched.
func (s IgnoreSet) Matches(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidParams) {
		return false
	}

	for _, k := range s {
		if k.matches(err) {
			return true
		}
	}

	return false
}

func (k IgnoreKind) matches(err error) bool {
	switch k {
	case IgnoreNotFound:
		return errors.Is(err, fs.ErrNotExist)
	case IgnorePermission:
		return errors.Is(err, fs.ErrPermission)
	case IgnoreExists:
		return errors.Is(err, fs.ErrExist)
	case IgnoreCrossDevice:
		return errors.Is(err, syscall.EXDEV)
	case IgnoreNotEmpty:
		return errors.Is(err, syscall.ENOTEMPTY)
	case IgnoreAny:
		return true
	}

	return false
}
