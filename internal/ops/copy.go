// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matt-FFFFFF/stevedore/internal/copier"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
)

func copyTreeParams() []operation.ParamSpec {
	return []operation.ParamSpec{
		pathParam("src", "source directory"),
		pathParam("dst", "destination directory"),
		flag("hard_links", "hard link files instead of copying them"),
		flag("copy_owner", "propagate the source owner"),
		flag("delete_extraneous", "remove destination entries missing from the source"),
		ignoreParam(),
		{Name: "preserve_symlinks", Type: operation.TypeBool, Default: true, Doc: "recreate symlinks instead of copying their targets"},
		flag("ignore_dangling_symlinks", "skip symlinks without a target when copying targets"),
	}
}

func copyDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "copy_file_to_file",
			Description: "copy one file unless the destination is current",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("src", "source file"),
				pathParam("dst", "destination file"),
				flag("hard_links", "hard link instead of copying"),
				flag("copy_owner", "propagate the source owner"),
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &copyFile{Base: b}, nil
			},
		},
		{
			Kind:        "copy_dir_to_dir",
			Description: "copy a directory into another directory",
			Essential:   true,
			Params:      copyTreeParams(),
			New: func(b operation.Base) (operation.Operation, error) {
				return &copyTree{Base: b, into: true}, nil
			},
		},
		{
			Kind:        "copy_dir_contents_to_dir",
			Description: "copy the contents of a directory into another directory",
			Essential:   true,
			Params:      copyTreeParams(),
			New: func(b operation.Base) (operation.Operation, error) {
				return &copyTree{Base: b}, nil
			},
		},
	}
}

type copyFile struct {
	operation.Base
}

func (c *copyFile) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	src, dst := ec.Abs(c.P().String("src")), ec.Abs(c.P().String("dst"))

	cp := copier.New(copier.Options{
		HardLinks:        c.P().Bool("hard_links") || ec.Config.HardLinks,
		PreserveSymlinks: true,
		CopyOwner:        c.P().Bool("copy_owner"),
	})

	ec.Step("copying " + src + " to " + dst)

	fi, err := os.Lstat(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if fi.Mode()&fs.ModeSymlink != 0 {
		err = cp.CopySymlink(ctx, src, dst)
	} else {
		err = cp.CopyFile(ctx, src, dst)
	}

	logStats(ctx, cp, dst)

	return err //nolint:wrapcheck
}

type copyTree struct {
	operation.Base
	// into copies src as a child of dst instead of copying its contents.
	into bool
}

func (c *copyTree) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	p := c.P()
	src, dst := ec.Abs(p.String("src")), ec.Abs(p.String("dst"))

	if c.into {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	cp := copier.New(copier.Options{
		HardLinks:              p.Bool("hard_links") || ec.Config.HardLinks,
		PreserveSymlinks:       p.Bool("preserve_symlinks"),
		IgnoreDanglingSymlinks: p.Bool("ignore_dangling_symlinks"),
		CopyOwner:              p.Bool("copy_owner"),
		DeleteExtraneous:       p.Bool("delete_extraneous"),
		Ignore:                 ignoreList(ec, p),
	})

	ec.Step("copying " + src + " to " + dst)

	err := cp.CopyTree(ctx, src, dst)
	logStats(ctx, cp, dst)

	return err //nolint:wrapcheck
}

func logStats(ctx context.Context, cp *copier.Copier, dst string) {
	s := cp.Stats()
	ctxlog.Debug(ctx, "copy finished", "dst", dst, "copied", s.Copied, "linked", s.Linked, "skipped", s.Skipped, "deleted", s.Deleted)
}
