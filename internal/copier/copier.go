// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package copier clones files and directory trees, skipping entries that are already current.
//
// A destination is current when it is the same file as its source, or has the same size and
// modification time. Copies preserve the source modification time, so a second pass over an
// unchanged tree writes nothing.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/stevedore/internal/checksum"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

var (
	// ErrNotDir is returned when a tree copy source is not a directory.
	ErrNotDir = errors.New("not a directory")
	// ErrDanglingSymlink is returned when a symlink to be dereferenced has no target.
	ErrDanglingSymlink = errors.New("dangling symlink")
)

// Options controls how entries are copied.
type Options struct {
	// HardLinks links files instead of copying bytes where the filesystem allows it.
	HardLinks bool
	// PreserveSymlinks recreates symlinks. Otherwise their targets are copied.
	PreserveSymlinks bool
	// IgnoreDanglingSymlinks skips symlinks without a target when dereferencing.
	IgnoreDanglingSymlinks bool
	// CopyOwner propagates the source uid and gid, best effort.
	CopyOwner bool
	// DeleteExtraneous removes destination entries that are not in the source.
	DeleteExtraneous bool
	// Ignore lists base name patterns that are neither copied nor deleted.
	Ignore []string
}

// Stats counts what a Copier did.
type Stats struct {
	Copied  int
	Linked  int
	Skipped int
	Deleted int
}

// Copier copies entries according to its Options.
// A Copier is not safe for concurrent use.
type Copier struct {
	opts  Options
	stats Stats
}

// New returns a Copier.
func New(opts Options) *Copier {
	return &Copier{opts: opts}
}

// Stats returns the counters accumulated so far.
func (c *Copier) Stats() Stats {
	return c.stats
}

// TreeError collects every failure of a tree copy. It unwraps to the first one.
type TreeError struct {
	Failures *multierror.Error
}

func (e *TreeError) Error() string {
	return e.Failures.Error()
}

// Unwrap returns the first failure.
func (e *TreeError) Unwrap() error {
	return e.Failures.Errors[0]
}

// ShouldCopy reports whether dst needs to be written from src.
// It is false when dst is the same file as src, or has the same size and modification time.
// Symlinks at src are followed.
func ShouldCopy(src, dst string) (bool, error) {
	dfi, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, err //nolint:wrapcheck
	}

	sfi, err := os.Stat(src)
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	if os.SameFile(sfi, dfi) {
		return false, nil
	}

	if sfi.Mode().Type() != dfi.Mode().Type() {
		return true, nil
	}

	return sfi.Size() != dfi.Size() || !sfi.ModTime().Equal(dfi.ModTime()), nil
}

// CopyFile copies the file at src to dst unless dst is already current.
func (c *Copier) CopyFile(ctx context.Context, src, dst string) error {
	ok, err := ShouldCopy(src, dst)
	if err != nil {
		return err
	}

	if !ok {
		c.stats.Skipped++
		return nil
	}

	lfi, err := os.Lstat(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	sfi, err := os.Stat(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent dir %s: %w", dst, err)
	}

	if err := removeExisting(dst); err != nil {
		return err
	}

	if c.opts.HardLinks && lfi.Mode()&os.ModeSymlink == 0 {
		err := os.Link(src, dst)
		if err == nil {
			c.stats.Linked++
			return nil
		}

		ctxlog.Debug(ctx, "hard link failed, copying instead", "src", src, "dst", dst, "error", err)
	}

	if err := copyBytes(src, dst, sfi.Mode().Perm()); err != nil {
		return err
	}

	if err := os.Chtimes(dst, sfi.ModTime(), sfi.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}

	if c.opts.CopyOwner {
		if err := chown(dst, sfi); err != nil {
			ctxlog.Debug(ctx, "cannot copy owner", "dst", dst, "error", err)
		}
	}

	c.stats.Copied++

	return nil
}

// CopySymlink copies the symlink at src to dst.
// With PreserveSymlinks the link itself is recreated, otherwise its target is copied.
func (c *Copier) CopySymlink(ctx context.Context, src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !c.opts.PreserveSymlinks {
		fi, err := os.Stat(src)
		switch {
		case errors.Is(err, fs.ErrNotExist) && c.opts.IgnoreDanglingSymlinks:
			ctxlog.Debug(ctx, "skipping dangling symlink", "src", src, "target", target)
			c.stats.Skipped++

			return nil
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %s -> %s: %w", ErrDanglingSymlink, src, target, err)
		case err != nil:
			return err //nolint:wrapcheck
		case fi.IsDir():
			var merr *multierror.Error

			c.copyDir(ctx, src, dst, fi, &merr)

			return treeError(merr)
		}

		return c.CopyFile(ctx, src, dst)
	}

	if existing, err := os.Readlink(dst); err == nil && existing == target {
		c.stats.Skipped++
		return nil
	}

	lfi, err := os.Lstat(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent dir for symlink %s: %w", dst, err)
	}

	if err := removeExisting(dst); err != nil {
		return err
	}

	if err := os.Symlink(target, dst); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", dst, target, err)
	}

	if err := linkTimes(dst, lfi.ModTime()); err != nil {
		ctxlog.Debug(ctx, "cannot set symlink times", "dst", dst, "error", err)
	}

	if c.opts.CopyOwner {
		if err := chown(dst, lfi); err != nil {
			ctxlog.Debug(ctx, "cannot copy symlink owner", "dst", dst, "error", err)
		}
	}

	c.stats.Copied++

	return nil
}

// CopyTree makes dst a copy of the directory src.
// A failing entry does not stop the walk: every failure is collected into a *TreeError.
func (c *Copier) CopyTree(ctx context.Context, src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, src)
	}

	var merr *multierror.Error

	c.copyDir(ctx, src, dst, fi, &merr)

	return treeError(merr)
}

func (c *Copier) copyDir(ctx context.Context, src, dst string, fi os.FileInfo, merr **multierror.Error) {
	if err := ctx.Err(); err != nil {
		*merr = multierror.Append(*merr, context.Cause(ctx))
		return
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		*merr = multierror.Append(*merr, fmt.Errorf("create dir %s: %w", dst, err))
		return
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		*merr = multierror.Append(*merr, err)
		return
	}

	keep := make(map[string]struct{}, len(entries))
	copyList := make([]os.DirEntry, 0, len(entries))

	for _, e := range entries {
		ignored, err := checksum.Ignored(e.Name(), c.opts.Ignore)
		if err != nil {
			*merr = multierror.Append(*merr, err)
			return
		}

		if ignored {
			continue
		}

		keep[e.Name()] = struct{}{}
		copyList = append(copyList, e)
	}

	if c.opts.DeleteExtraneous {
		c.deleteExtraneous(dst, keep, merr)
	}

	for _, e := range copyList {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())

		var err error

		switch {
		case e.Type()&fs.ModeSymlink != 0:
			err = c.CopySymlink(ctx, s, d)
		case e.IsDir():
			info, ierr := e.Info()
			if ierr != nil {
				err = ierr
				break
			}

			c.copyDir(ctx, s, d, info, merr)
		default:
			err = c.CopyFile(ctx, s, d)
		}

		if err != nil {
			*merr = multierror.Append(*merr, err)
		}
	}

	if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
		*merr = multierror.Append(*merr, err)
	}

	if err := os.Chtimes(dst, fi.ModTime(), fi.ModTime()); err != nil {
		*merr = multierror.Append(*merr, err)
	}
}

func (c *Copier) deleteExtraneous(dst string, keep map[string]struct{}, merr **multierror.Error) {
	existing, err := os.ReadDir(dst)
	if err != nil {
		*merr = multierror.Append(*merr, err)
		return
	}

	for _, e := range existing {
		if _, ok := keep[e.Name()]; ok {
			continue
		}

		ignored, err := checksum.Ignored(e.Name(), c.opts.Ignore)
		if err != nil || ignored {
			continue
		}

		if err := os.RemoveAll(filepath.Join(dst, e.Name())); err != nil {
			*merr = multierror.Append(*merr, err)
			continue
		}

		c.stats.Deleted++
	}
}

func treeError(merr *multierror.Error) error {
	if merr == nil || len(merr.Errors) == 0 {
		return nil
	}

	return &TreeError{Failures: merr}
}

// copyBytes writes src to a temporary sibling of dst and renames it into place.
func copyBytes(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer in.Close() //nolint:errcheck

	tmp := filepath.Join(filepath.Dir(dst), fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.NewString()[:8]))

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer os.Remove(tmp) //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		return err //nolint:wrapcheck
	}

	if err := os.Chmod(tmp, perm); err != nil {
		return err //nolint:wrapcheck
	}

	return os.Rename(tmp, dst) //nolint:wrapcheck
}

func removeExisting(p string) error {
	fi, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err //nolint:wrapcheck
	}

	if fi.IsDir() {
		return os.RemoveAll(p) //nolint:wrapcheck
	}

	return os.Remove(p) //nolint:wrapcheck
}
