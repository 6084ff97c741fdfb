// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package wtar

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/google/uuid"
	"github.com/matt-FFFFFF/stevedore/internal/checksum"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/spf13/afero"
)

// UnpackOptions configures Unpack.
type UnpackOptions struct {
	// Source is the archive, any of its parts, or the name of a split set.
	Source string
	// Destination is the directory receiving the archive's root entry.
	// When empty the archive's own directory is used.
	Destination string
	// RemoveArtifacts deletes the archive parts once the destination is current.
	RemoveArtifacts bool
	// Ignore lists base name patterns disregarded when checking an existing destination.
	Ignore []string
}

// UnpackResult describes the outcome of Unpack.
type UnpackResult struct {
	// Path is the extracted root entry.
	Path string
	// Total is the total checksum embedded in the archive.
	Total string
	// Skipped is true when the destination already held the archived content.
	Skipped bool
}

// Unpack extracts an archive unless the destination already holds an entry with the same total checksum.
// Extraction happens in a staging directory that only replaces the destination entry once every
// entry has been read and verified, so malformed input leaves the destination untouched.
func Unpack(ctx context.Context, opts UnpackOptions) (UnpackResult, error) {
	parts, err := FindParts(opts.Source)
	if err != nil {
		return UnpackResult{}, err
	}

	total, root, err := readHead(parts)
	if err != nil {
		return UnpackResult{}, err
	}

	if _, err := entryPath(root, root); err != nil {
		return UnpackResult{}, err
	}

	dst := opts.Destination
	if dst == "" {
		dst = filepath.Dir(parts[0])
	}

	res := UnpackResult{Path: filepath.Join(dst, root), Total: total}

	if upToDate(res.Path, total, opts.Ignore) {
		ctxlog.Debug(ctx, "destination up to date", "path", res.Path, "checksum", total)

		res.Skipped = true
	} else if err := extractInto(ctx, parts, dst, root, total); err != nil {
		return res, err
	}

	if opts.RemoveArtifacts {
		for _, p := range parts {
			if err := FS.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return res, fmt.Errorf("cannot remove archive part: %w", err)
			}
		}
	}

	return res, nil
}

// TreeOptions configures UnpackTree.
type TreeOptions struct {
	RemoveArtifacts bool
	// Bookkeeping names directories that are never searched for archives.
	Bookkeeping []string
	Ignore      []string
}

// UnpackTree unpacks every archive found below root next to where it lies.
func UnpackTree(ctx context.Context, root string, opts TreeOptions) ([]UnpackResult, error) {
	var firsts []string

	err := afero.Walk(FS, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if fi.IsDir() {
			if p != root && (slices.Contains(opts.Bookkeeping, fi.Name()) || strings.HasPrefix(fi.Name(), StagingPrefix)) {
				return filepath.SkipDir
			}

			return nil
		}

		if fi.Mode().IsRegular() && IsFirstPart(fi.Name()) {
			firsts = append(firsts, p)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot search %s for archives: %w", root, err)
	}

	results := make([]UnpackResult, 0, len(firsts))

	for _, p := range firsts {
		if err := ctx.Err(); err != nil {
			return results, context.Cause(ctx)
		}

		res, err := Unpack(ctx, UnpackOptions{
			Source:          p,
			Destination:     filepath.Dir(p),
			RemoveArtifacts: opts.RemoveArtifacts,
			Ignore:          opts.Ignore,
		})
		if err != nil {
			return results, err
		}

		results = append(results, res)
	}

	return results, nil
}

func upToDate(p, total string, ignore []string) bool {
	if _, err := lstat(p); err != nil {
		return false
	}

	rec, err := checksum.Compute(FS, p, ignore)

	return err == nil && rec.Total() == total
}

func extractInto(ctx context.Context, parts []string, dst, root, total string) error {
	if err := FS.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("cannot create destination %s: %w", dst, err)
	}

	staging := filepath.Join(dst, StagingPrefix+uuid.NewString())
	if err := FS.Mkdir(staging, 0o700); err != nil {
		return fmt.Errorf("cannot create staging directory: %w", err)
	}

	defer FS.RemoveAll(staging) //nolint:errcheck

	if err := extract(ctx, parts, staging, root); err != nil {
		return err
	}

	// Entries were verified one by one; this also catches entries missing from the stream.
	staged := filepath.Join(staging, root)

	rec, err := checksum.Compute(FS, staged, nil)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if rec.Total() != total {
		return fmt.Errorf("%w: %s: extracted %s, recorded %s", ErrChecksum, parts[0], rec.Total(), total)
	}

	final := filepath.Join(dst, root)

	if err := FS.RemoveAll(final); err != nil {
		return fmt.Errorf("cannot remove stale %s: %w", final, err)
	}

	if err := FS.Rename(staged, final); err != nil {
		return fmt.Errorf("cannot move %s into place: %w", final, err)
	}

	return nil
}

type stagedDir struct {
	path string
	hdr  *tar.Header
}

func extract(ctx context.Context, parts []string, staging, root string) error {
	r, closeAll, err := openParts(parts)
	if err != nil {
		return err
	}

	defer closeAll()

	bz, err := bzip2.NewReader(r, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}

	tr := tar.NewReader(bz)

	var dirs []stagedDir

	for {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFormat, parts[0], err)
		}

		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		rel, err := entryPath(hdr.Name, root)
		if err != nil {
			return err
		}

		target := filepath.Join(staging, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := FS.MkdirAll(target, 0o755); err != nil {
				return err //nolint:wrapcheck
			}

			dirs = append(dirs, stagedDir{path: target, hdr: hdr})
		case tar.TypeReg:
			if err := extractFile(tr, hdr, target); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := extractSymlink(hdr, target); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s: entry type %q", ErrFormat, hdr.Name, hdr.Typeflag)
		}
	}

	// Directory modes and times are applied last so that read-only directories can still be filled.
	for _, d := range slices.Backward(dirs) {
		if err := FS.Chmod(d.path, fs.FileMode(d.hdr.Mode).Perm()); err != nil { //nolint:gosec
			return err //nolint:wrapcheck
		}

		if err := FS.Chtimes(d.path, d.hdr.ModTime, d.hdr.ModTime); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func extractFile(r io.Reader, hdr *tar.Header, target string) error {
	want, ok := hdr.PAXRecords[checksumKey]
	if !ok {
		return fmt.Errorf("%w: %s: missing %s record", ErrFormat, hdr.Name, checksumKey)
	}

	if err := FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err //nolint:wrapcheck
	}

	f, err := FS.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err //nolint:wrapcheck
	}

	got, err := checksum.HashReader(io.TeeReader(r, f))
	if err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("%w: %s: %w", ErrFormat, hdr.Name, err)
	}

	if err := f.Close(); err != nil {
		return err //nolint:wrapcheck
	}

	if got != want {
		return fmt.Errorf("%w: %s", ErrChecksum, hdr.Name)
	}

	if err := FS.Chmod(target, fs.FileMode(hdr.Mode).Perm()); err != nil { //nolint:gosec
		return err //nolint:wrapcheck
	}

	return FS.Chtimes(target, hdr.ModTime, hdr.ModTime) //nolint:wrapcheck
}

func extractSymlink(hdr *tar.Header, target string) error {
	if hdr.PAXRecords[checksumKey] != checksum.HashLink(hdr.Linkname) {
		return fmt.Errorf("%w: %s", ErrChecksum, hdr.Name)
	}

	l, ok := FS.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: hdr.Linkname, New: target, Err: afero.ErrNoSymlink}
	}

	if err := FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err //nolint:wrapcheck
	}

	return l.SymlinkIfPossible(hdr.Linkname, target) //nolint:wrapcheck
}

// entryPath validates an entry name and returns it as a native relative path.
// Every entry must lie below the archive's root entry.
func entryPath(name, root string) (string, error) {
	clean := path.Clean(name)

	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || root == "" || root == "." || root == ".." {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	if first, _, _ := strings.Cut(clean, "/"); first != root {
		return "", fmt.Errorf("%w: %q is outside %q", ErrUnsafePath, name, root)
	}

	return filepath.FromSlash(clean), nil
}
