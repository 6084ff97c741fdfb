// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"errors"
	"slices"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/spf13/afero"
)

// FS is the filesystem used by the file operations.
var FS = afero.NewOsFs()

var (
	// ErrNotDir is returned when a directory is required.
	ErrNotDir = errors.New("not a directory")
	// ErrIsDir is returned when a file is required.
	ErrIsDir = errors.New("is a directory")
	// ErrSymlinkUnsupported is returned when the filesystem cannot create symlinks.
	ErrSymlinkUnsupported = errors.New("filesystem does not support symlinks")
)

// Register adds every operation kind to reg.
func Register(reg *operation.Registry) error {
	defs := slices.Concat(
		scopeDefinitions(),
		messageDefinitions(),
		fileDefinitions(),
		copyDefinitions(),
		archiveDefinitions(),
		processDefinitions(),
	)

	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry returns a registry holding every operation kind.
func NewRegistry() *operation.Registry {
	reg := operation.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}

	return reg
}

func pathParam(name, doc string) operation.ParamSpec {
	return operation.ParamSpec{Name: name, Type: operation.TypeString, Required: true, Path: true, Doc: doc}
}

func optionalPath(name, doc string) operation.ParamSpec {
	return operation.ParamSpec{Name: name, Type: operation.TypeString, Default: "", Path: true, Doc: doc}
}

func flag(name, doc string) operation.ParamSpec {
	return operation.ParamSpec{Name: name, Type: operation.TypeBool, Default: false, Doc: doc}
}

func ignoreParam() operation.ParamSpec {
	return operation.ParamSpec{
		Name: "ignore", Type: operation.TypeStringList, Default: []string{},
		Doc: "base name patterns added to the configured ignore list",
	}
}

// ignoreList merges the configured ignore patterns with the operation's own.
func ignoreList(ec *operation.ExecContext, p operation.Params) []string {
	return slices.Concat(ec.Config.Ignore, p.Strings("ignore"))
}

// optionalAbs resolves p unless it is empty.
func optionalAbs(ec *operation.ExecContext, p string) string {
	if p == "" {
		return ""
	}

	return ec.Abs(p)
}
