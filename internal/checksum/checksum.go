// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package checksum computes content checksums of file trees.
//
// A Record maps each relative path under a root to the sha1 of its bytes, or of the link target
// text for symbolic links, which are never followed. Total folds the record into one checksum
// that depends only on the relative paths and their contents, never on directory iteration order.
package checksum

import (
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/afero"
)

// TotalKey is the synthetic key holding the total checksum.
const TotalKey = "total_checksum"

var (
	// ErrHash is returned when a file cannot be hashed.
	ErrHash = errors.New("failed to compute checksum")
	// ErrPattern is returned for a malformed ignore pattern.
	ErrPattern = errors.New("invalid ignore pattern")
)

// Record maps slash separated relative paths to hex sha1 digests.
type Record map[string]string

// Compute walks root and returns its Record.
// Entries whose base name matches one of the ignore patterns are skipped, directories included.
// Directories themselves contribute no entry. A root that is a file or symlink is recorded under its base name.
func Compute(fs afero.Fs, root string, ignore []string) (Record, error) {
	rec := make(Record)

	info, err := lstat(fs, root)
	if err != nil {
		return nil, errors.Join(ErrHash, err)
	}

	if !info.IsDir() {
		h, err := hashEntry(fs, root, info)
		if err != nil {
			return nil, err
		}

		rec[filepath.Base(root)] = h

		return rec, nil
	}

	err = afero.Walk(fs, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if p == root {
			return nil
		}

		ignored, err := Ignored(fi.Name(), ignore)
		if err != nil {
			return err
		}

		if ignored {
			if fi.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if fi.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		h, err := hashEntry(fs, p, fi)
		if err != nil {
			return err
		}

		rec[filepath.ToSlash(rel)] = h

		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrHash, err)
	}

	return rec, nil
}

// Total returns the total checksum: the sha1 of the concatenation of path+hash for every entry,
// in sorted path order.
func (r Record) Total() string {
	h := sha1.New() //nolint:gosec

	for _, p := range r.Paths() {
		io.WriteString(h, p+r[p]) //nolint:errcheck
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Paths returns the recorded paths in sorted order.
func (r Record) Paths() []string {
	paths := make([]string, 0, len(r))
	for p := range r {
		if p == TotalKey {
			continue
		}

		paths = append(paths, p)
	}

	slices.Sort(paths)

	return paths
}

// Equal reports whether both records have the same total checksum.
func (r Record) Equal(other Record) bool {
	return r.Total() == other.Total()
}

// WriteReport writes one "<path>, <sha1>" line per entry followed by the total checksum line.
// The comma is padded so the checksums line up in a column.
func (r Record) WriteReport(w io.Writer) error {
	paths := r.Paths()
	total := "total checksum"

	width := len(total)
	for _, p := range paths {
		width = max(width, len(p))
	}

	for _, p := range paths {
		if _, err := fmt.Fprintf(w, "%-*s %s\n", width+1, p+",", r[p]); err != nil {
			return err //nolint:wrapcheck
		}
	}

	_, err := fmt.Fprintf(w, "%-*s %s\n", width+1, total+",", r.Total())

	return err //nolint:wrapcheck
}

// Ignored reports whether name matches any of the glob patterns.
// A nil or empty pattern list ignores nothing.
func Ignored(name string, patterns []string) (bool, error) {
	for _, pat := range patterns {
		ok, err := doublestar.Match(pat, name)
		if err != nil {
			return false, fmt.Errorf("%w: %q: %w", ErrPattern, pat, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// HashFile returns the hex sha1 of the file content at p.
func HashFile(fs afero.Fs, p string) (string, error) {
	f, err := fs.Open(p)
	if err != nil {
		return "", errors.Join(ErrHash, err)
	}

	defer f.Close() //nolint:errcheck

	return HashReader(f)
}

// HashReader returns the hex sha1 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Join(ErrHash, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashLink returns the checksum recorded for a symlink with the given target.
func HashLink(target string) string {
	sum := sha1.Sum([]byte(target)) //nolint:gosec

	return hex.EncodeToString(sum[:])
}

func hashEntry(fs afero.Fs, p string, fi os.FileInfo) (string, error) {
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := readlink(fs, p)
		if err != nil {
			return "", errors.Join(ErrHash, err)
		}

		return HashLink(target), nil
	}

	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s: unsupported file mode %v", ErrHash, p, fi.Mode())
	}

	return HashFile(fs, p)
}

func lstat(fs afero.Fs, p string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(p)
		return fi, err //nolint:wrapcheck
	}

	return fs.Stat(p) //nolint:wrapcheck
}

func readlink(fs afero.Fs, p string) (string, error) {
	l, ok := fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: p, Err: afero.ErrNoReadlink}
	}

	return l.ReadlinkIfPossible(p) //nolint:wrapcheck
}
