// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

// FS is used to inspect paths when describing a failure.
var FS afero.Fs = afero.NewOsFs()

// PathInfo describes a path parameter at the time of a failure.
type PathInfo struct {
	Param  string
	Path   string
	Exists bool
	Mode   fs.FileMode
}

// OpError is returned by Execute when an operation fails.
// Enclosing scopes add themselves to Scopes as the error propagates.
type OpError struct {
	Kind     string
	Progress int
	Message  string
	Stages   []string
	Paths    []PathInfo
	LastStep string
	Scopes   []string
	Err      error
}

// Error implements error.
func (e *OpError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s failed", e.Message)

	if e.Progress > 0 {
		fmt.Fprintf(&sb, " (progress %d)", e.Progress)
	}

	if e.LastStep != "" {
		fmt.Fprintf(&sb, " while %s", e.LastStep)
	}

	fmt.Fprintf(&sb, ": %v", e.Err)

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// LogValue implements slog.LogValuer for the structured failure report.
func (e *OpError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind),
		slog.Int("progress", e.Progress),
		slog.String("message", e.Message),
		slog.String("error", e.Err.Error()),
		slog.Any("stages", e.Stages),
	}

	if e.LastStep != "" {
		attrs = append(attrs, slog.String("last_step", e.LastStep))
	}

	if len(e.Scopes) > 0 {
		attrs = append(attrs, slog.Any("scopes", e.Scopes))
	}

	for _, p := range e.Paths {
		v := []any{slog.String("path", p.Path), slog.Bool("exists", p.Exists)}
		if p.Exists {
			v = append(v, slog.String("mode", p.Mode.String()))
		}

		attrs = append(attrs, slog.Group(p.Param, v...))
	}

	return slog.GroupValue(attrs...)
}

func newOpError(ec *ExecContext, op Operation, number int, err error) *OpError {
	e := &OpError{
		Kind:     op.Kind(),
		Progress: number,
		Message:  op.ProgressMessage(),
		Stages:   ec.Stages(),
		LastStep: ec.LastStep(),
		Err:      err,
	}

	params := op.base().params

	for _, s := range op.Definition().Params {
		if !s.Path {
			continue
		}

		p := params.String(s.Name)
		if p == "" {
			continue
		}

		e.Paths = append(e.Paths, describePath(s.Name, ec.Abs(p)))
	}

	return e
}

func describePath(param, path string) PathInfo {
	info := PathInfo{Param: param, Path: path}

	var (
		fi  fs.FileInfo
		err error
	)

	if l, ok := FS.(afero.Lstater); ok {
		fi, _, err = l.LstatIfPossible(path)
	} else {
		fi, err = FS.Stat(path)
	}

	if err == nil {
		info.Exists = true
		info.Mode = fi.Mode()
	}

	return info
}
