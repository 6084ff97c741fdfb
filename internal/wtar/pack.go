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
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/google/uuid"
	"github.com/matt-FFFFFF/stevedore/internal/checksum"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/spf13/afero"
)

// PackOptions configures Pack.
type PackOptions struct {
	// Source is the file or directory to archive.
	Source string
	// Destination is an archive file, or a directory that receives <source name>.wtar.
	// When empty the archive is placed next to Source.
	Destination string
	// SplitThreshold is the maximum part size in bytes. Zero or less never splits.
	SplitThreshold int64
	// Ignore lists base name patterns left out of the archive.
	Ignore []string
}

// PackResult describes the outcome of Pack.
type PackResult struct {
	// Target is the archive name, without any split suffix.
	Target string
	// Parts are the archive files, in stream order.
	Parts []string
	// Total is the total checksum of the source.
	Total string
	// Skipped is true when an existing archive already held the same content.
	Skipped bool
}

// Pack archives opts.Source unless an archive with the same total checksum already exists at the target.
func Pack(ctx context.Context, opts PackOptions) (PackResult, error) {
	src := filepath.Clean(opts.Source)

	info, err := lstat(src)
	if err != nil {
		return PackResult{}, fmt.Errorf("cannot pack %s: %w", src, err)
	}

	target, err := resolveTarget(src, opts.Destination)
	if err != nil {
		return PackResult{}, err
	}

	rec, err := checksum.Compute(FS, src, opts.Ignore)
	if err != nil {
		return PackResult{}, err //nolint:wrapcheck
	}

	res := PackResult{Target: target, Total: rec.Total()}

	if parts, err := FindParts(target); err == nil {
		existing, err := ReadTotalChecksum(parts)
		if err == nil && existing == res.Total {
			ctxlog.Debug(ctx, "archive up to date", "target", target, "checksum", res.Total)

			res.Parts = parts
			res.Skipped = true

			return res, nil
		}

		if err != nil {
			ctxlog.Debug(ctx, "existing archive unreadable", "target", target, "error", err)
		}
	}

	if err := removeParts(target); err != nil {
		return res, fmt.Errorf("cannot remove previous archive %s: %w", target, err)
	}

	tmp := target + ".tmp-" + uuid.NewString()

	if err := writeArchive(ctx, tmp, src, info, rec, opts.Ignore); err != nil {
		FS.Remove(tmp) //nolint:errcheck
		return res, err
	}

	res.Parts, err = splitInto(tmp, target, opts.SplitThreshold)
	if err != nil {
		return res, err
	}

	ctxlog.Debug(ctx, "packed archive", "target", target, "parts", len(res.Parts), "checksum", res.Total)

	return res, nil
}

// resolveTarget returns the archive path for src.
// An existing file is overwritten in place and an existing directory receives <base>.wtar.
// A missing path ending in .wtar names the archive itself, any other missing path is created as a directory.
func resolveTarget(src, dst string) (string, error) {
	if dst == "" {
		dst = filepath.Dir(src)
	}

	name := filepath.Base(src) + Ext

	fi, err := FS.Stat(dst)

	switch {
	case err == nil && fi.IsDir():
		return filepath.Join(dst, name), nil
	case err == nil:
		return dst, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("cannot resolve archive destination %s: %w", dst, err)
	case strings.HasSuffix(dst, Ext):
		return dst, FS.MkdirAll(filepath.Dir(dst), 0o755) //nolint:wrapcheck
	}

	if err := FS.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("cannot create archive destination %s: %w", dst, err)
	}

	return filepath.Join(dst, name), nil
}

func writeArchive(ctx context.Context, dst, src string, info os.FileInfo, rec checksum.Record, ignore []string) error {
	f, err := FS.Create(dst)
	if err != nil {
		return fmt.Errorf("cannot create archive: %w", err)
	}

	defer f.Close() //nolint:errcheck

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return fmt.Errorf("cannot create compressor: %w", err)
	}

	tw := tar.NewWriter(bz)

	err = tw.WriteHeader(&tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		PAXRecords: map[string]string{checksum.TotalKey: rec.Total()},
		Format:     tar.FormatPAX,
	})
	if err != nil {
		return fmt.Errorf("cannot write archive header: %w", err)
	}

	root := filepath.Base(src)

	if !info.IsDir() {
		err = writeEntry(tw, src, root, info, rec[root])
	} else {
		err = afero.Walk(FS, src, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if err := ctx.Err(); err != nil {
				return context.Cause(ctx)
			}

			if p != src {
				ignored, err := checksum.Ignored(fi.Name(), ignore)
				if err != nil {
					return err //nolint:wrapcheck
				}

				if ignored {
					if fi.IsDir() {
						return filepath.SkipDir
					}

					return nil
				}
			}

			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err //nolint:wrapcheck
			}

			rel = filepath.ToSlash(rel)

			return writeEntry(tw, p, path.Join(root, rel), fi, rec[rel])
		})
	}

	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("cannot finish archive: %w", err)
	}

	if err := bz.Close(); err != nil {
		return fmt.Errorf("cannot finish compression: %w", err)
	}

	return f.Close() //nolint:wrapcheck
}

// writeEntry writes one header, and the file content for regular files.
// Ownership is left zero so archives do not depend on who packed them.
func writeEntry(tw *tar.Writer, p, name string, fi os.FileInfo, sum string) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    int64(fi.Mode().Perm()),
		ModTime: fi.ModTime(),
		Format:  tar.FormatPAX,
	}

	switch {
	case fi.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := readlink(p)
		if err != nil {
			return err
		}

		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = target
		hdr.PAXRecords = map[string]string{checksumKey: sum}
	case fi.Mode().IsRegular():
		hdr.Typeflag = tar.TypeReg
		hdr.Size = fi.Size()
		hdr.PAXRecords = map[string]string{checksumKey: sum}
	default:
		return fmt.Errorf("%w: %s: %v", ErrUnsupported, p, fi.Mode())
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("cannot write header for %s: %w", p, err)
	}

	if hdr.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := FS.Open(p)
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("cannot archive %s: %w", p, err)
	}

	return nil
}

// splitInto moves the finished archive at tmp to target, cutting it into parts when it exceeds threshold.
func splitInto(tmp, target string, threshold int64) ([]string, error) {
	fi, err := FS.Stat(tmp)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if threshold <= 0 || fi.Size() <= threshold {
		if err := FS.Rename(tmp, target); err != nil {
			return nil, err //nolint:wrapcheck
		}

		return []string{target}, nil
	}

	defer FS.Remove(tmp) //nolint:errcheck

	n := int((fi.Size() + threshold - 1) / threshold)
	if n > maxParts {
		return nil, fmt.Errorf("%w: %s needs %d parts", ErrTooManyParts, target, n)
	}

	in, err := FS.Open(tmp)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	defer in.Close() //nolint:errcheck

	parts := make([]string, 0, n)

	for i := range n {
		name := PartName(target, i)

		if err := writePart(name, in, threshold); err != nil {
			removeParts(target) //nolint:errcheck
			return nil, err
		}

		parts = append(parts, name)
	}

	return parts, nil
}

func writePart(name string, r io.Reader, size int64) error {
	out, err := FS.Create(name)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if _, err := io.CopyN(out, r, size); err != nil && !errors.Is(err, io.EOF) {
		out.Close() //nolint:errcheck
		return fmt.Errorf("cannot write archive part %s: %w", name, err)
	}

	return out.Close() //nolint:wrapcheck
}

func lstat(p string) (os.FileInfo, error) {
	if l, ok := FS.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(p)
		return fi, err //nolint:wrapcheck
	}

	return FS.Stat(p) //nolint:wrapcheck
}

func readlink(p string) (string, error) {
	l, ok := FS.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: p, Err: afero.ErrNoReadlink}
	}

	return l.ReadlinkIfPossible(p) //nolint:wrapcheck
}
