// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/spf13/afero"
)

const defaultDirMode fs.FileMode = 0o755

// now is stubbed by tests.
var now = time.Now

func fileDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "make_dir",
			Description: "create a directory and its parents",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("path", "directory to create"),
				{Name: "chmod", Type: operation.TypeString, Default: "", Doc: "octal permissions applied to the directory"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if _, err := parseOptionalMode(b.P().String("chmod")); err != nil {
					return nil, err
				}

				return &makeDir{Base: b}, nil
			},
		},
		{
			Kind:        "touch",
			Description: "create a file or update its modification time",
			Essential:   true,
			Params:      []operation.ParamSpec{pathParam("path", "file to touch")},
			New: func(b operation.Base) (operation.Operation, error) {
				return &touch{Base: b}, nil
			},
		},
		{
			Kind:        "rm_file",
			Description: "remove a file or symlink",
			Essential:   true,
			Params:      []operation.ParamSpec{pathParam("path", "file to remove")},
			New: func(b operation.Base) (operation.Operation, error) {
				return &remove{Base: b, mode: removeFile}, nil
			},
		},
		{
			Kind:        "rm_dir",
			Description: "remove a directory and everything below it",
			Essential:   true,
			Params:      []operation.ParamSpec{pathParam("path", "directory to remove")},
			New: func(b operation.Base) (operation.Operation, error) {
				return &remove{Base: b, mode: removeDir}, nil
			},
		},
		{
			Kind:        "rm_file_or_dir",
			Description: "remove whatever is at a path",
			Essential:   true,
			Params:      []operation.ParamSpec{pathParam("path", "entry to remove")},
			New: func(b operation.Base) (operation.Operation, error) {
				return &remove{Base: b, mode: removeAny}, nil
			},
		},
		{
			Kind:        "chmod",
			Description: "change permissions",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("path", "entry to change"),
				{Name: "mode", Type: operation.TypeString, Required: true, Doc: "octal permissions"},
				flag("recursive", "also change everything below a directory"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				mode, err := parseMode(b.P().String("mode"))
				if err != nil {
					return nil, err
				}

				return &chmod{Base: b, mode: mode}, nil
			},
		},
		{
			Kind:        "chown",
			Description: "change ownership",
			Essential:   true,
			Platforms:   operation.Linux | operation.Mac,
			Params: []operation.ParamSpec{
				pathParam("path", "entry to change"),
				{Name: "uid", Type: operation.TypeInt, Default: -1, Doc: "user id, -1 keeps the current one"},
				{Name: "gid", Type: operation.TypeInt, Default: -1, Doc: "group id, -1 keeps the current one"},
				flag("recursive", "also change everything below a directory"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if b.P().Int("uid") < -1 || b.P().Int("gid") < -1 {
					return nil, fmt.Errorf("%w: uid and gid must be -1 or more", operation.ErrInvalidParams)
				}

				return &chown{Base: b}, nil
			},
		},
		{
			Kind:        "symlink",
			Description: "create a symbolic link",
			Essential:   true,
			Params: []operation.ParamSpec{
				{Name: "target", Type: operation.TypeString, Required: true, Doc: "link content, used as given"},
				pathParam("link", "link to create"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &symlink{Base: b}, nil
			},
		},
		{
			Kind:        "move",
			Description: "rename a file or directory",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "entry to move"),
				pathParam("dst", "new name"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &move{Base: b}, nil
			},
		},
	}
}

func parseMode(s string) (fs.FileMode, error) {
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("%w: invalid mode %q, want octal permissions", operation.ErrInvalidParams, s)
	}

	return fs.FileMode(m), nil
}

func parseOptionalMode(s string) (fs.FileMode, error) {
	if s == "" {
		return 0, nil
	}

	return parseMode(s)
}

func lstat(p string) (os.FileInfo, error) {
	if l, ok := FS.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(p)
		return fi, err //nolint:wrapcheck
	}

	return FS.Stat(p) //nolint:wrapcheck
}

func readlink(p string) (string, error) {
	if r, ok := FS.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(p) //nolint:wrapcheck
	}

	return "", ErrSymlinkUnsupported
}

type makeDir struct {
	operation.Base
}

func (m *makeDir) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	dir := ec.Abs(m.P().String("path"))

	ec.Step("creating " + dir)

	if err := FS.MkdirAll(dir, defaultDirMode); err != nil {
		return err //nolint:wrapcheck
	}

	mode, _ := parseOptionalMode(m.P().String("chmod"))
	if mode == 0 {
		return nil
	}

	ec.Step("changing mode of " + dir)
	ctxlog.Debug(ctx, "changing directory mode", "path", dir, "mode", mode.String())

	return FS.Chmod(dir, mode) //nolint:wrapcheck
}

type touch struct {
	operation.Base
}

func (t *touch) Invoke(_ context.Context, ec *operation.ExecContext) error {
	p := ec.Abs(t.P().String("path"))

	ec.Step("touching " + p)

	if _, err := FS.Stat(p); err == nil {
		ts := now()
		return FS.Chtimes(p, ts, ts) //nolint:wrapcheck
	}

	f, err := FS.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return f.Close() //nolint:wrapcheck
}

type removeMode int

const (
	removeFile removeMode = iota
	removeDir
	removeAny
)

type remove struct {
	operation.Base
	mode removeMode
}

// Invoke removes the entry. A missing entry is not an error.
func (r *remove) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	p := ec.Abs(r.P().String("path"))

	fi, err := lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		ctxlog.Debug(ctx, "nothing to remove", "path", p)
		return nil
	}

	if err != nil {
		return err
	}

	isDir := fi.IsDir()

	switch {
	case r.mode == removeFile && isDir:
		return fmt.Errorf("%w: %s", ErrIsDir, p)
	case r.mode == removeDir && !isDir:
		return fmt.Errorf("%w: %s", ErrNotDir, p)
	}

	ec.Step("removing " + p)

	if isDir {
		return FS.RemoveAll(p) //nolint:wrapcheck
	}

	return FS.Remove(p) //nolint:wrapcheck
}

type chmod struct {
	operation.Base
	mode fs.FileMode
}

func (c *chmod) Invoke(_ context.Context, ec *operation.ExecContext) error {
	root := ec.Abs(c.P().String("path"))

	if !c.P().Bool("recursive") {
		ec.Step("changing mode of " + root)
		return FS.Chmod(root, c.mode) //nolint:wrapcheck
	}

	return walkNoLinks(root, func(p string) error {
		ec.Step("changing mode of " + p)
		return FS.Chmod(p, c.mode) //nolint:wrapcheck
	})
}

type chown struct {
	operation.Base
}

func (c *chown) Invoke(_ context.Context, ec *operation.ExecContext) error {
	root := ec.Abs(c.P().String("path"))
	uid, gid := int(c.P().Int("uid")), int(c.P().Int("gid"))

	if !c.P().Bool("recursive") {
		ec.Step("changing owner of " + root)
		return FS.Chown(root, uid, gid) //nolint:wrapcheck
	}

	return walkNoLinks(root, func(p string) error {
		ec.Step("changing owner of " + p)
		return FS.Chown(p, uid, gid) //nolint:wrapcheck
	})
}

// walkNoLinks calls fn for root and every entry below it, except symlinks.
func walkNoLinks(root string, fn func(p string) error) error {
	return afero.Walk(FS, root, func(p string, info fs.FileInfo, err error) error { //nolint:wrapcheck
		if err != nil {
			return err
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			return nil
		}

		return fn(p)
	})
}

type symlink struct {
	operation.Base
}

// Invoke creates the link. An existing link with the same target is left alone,
// any other file or link in the way is replaced. Directories in the way are an error.
func (s *symlink) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	target := s.P().String("target")
	link := ec.Abs(s.P().String("link"))

	linker, ok := FS.(afero.Linker)
	if !ok {
		return ErrSymlinkUnsupported
	}

	if fi, err := lstat(link); err == nil {
		switch {
		case fi.Mode()&fs.ModeSymlink != 0:
			if current, err := readlink(link); err == nil && current == target {
				ctxlog.Debug(ctx, "symlink already current", "link", link)
				return nil
			}
		case fi.IsDir():
			return fmt.Errorf("%w: %s", fs.ErrExist, link)
		}

		ec.Step("removing " + link)

		if err := FS.Remove(link); err != nil {
			return err //nolint:wrapcheck
		}
	}

	ec.Step("creating parent of " + link)

	if err := FS.MkdirAll(filepath.Dir(link), defaultDirMode); err != nil {
		return err //nolint:wrapcheck
	}

	ec.Step("linking " + link + " to " + target)

	return linker.SymlinkIfPossible(target, link) //nolint:wrapcheck
}

type move struct {
	operation.Base
}

func (m *move) Invoke(_ context.Context, ec *operation.ExecContext) error {
	src, dst := ec.Abs(m.P().String("src")), ec.Abs(m.P().String("dst"))

	ec.Step("moving " + src + " to " + dst)

	return FS.Rename(src, dst) //nolint:wrapcheck
}
