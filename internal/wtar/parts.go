// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package wtar

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/matt-FFFFFF/stevedore/internal/checksum"
	"github.com/spf13/afero"
)

const (
	// Ext is the file extension of a whole archive and the stem of split part names.
	Ext = ".wtar"
	// StagingPrefix prefixes the temporary directories used while extracting.
	StagingPrefix = ".wtar-staging-"

	checksumKey = "checksum"
	maxParts    = 26 * 26
)

var (
	// ErrNoArchive is returned when no archive part can be found.
	ErrNoArchive = errors.New("archive not found")
	// ErrFormat is returned for malformed or truncated archive streams.
	ErrFormat = errors.New("malformed archive")
	// ErrChecksum is returned when extracted content does not match the recorded checksums.
	ErrChecksum = errors.New("archive checksum mismatch")
	// ErrTooManyParts is returned when a split would need more parts than two letter suffixes allow.
	ErrTooManyParts = errors.New("too many archive parts")
	// ErrUnsafePath is returned for entries that would be written outside the destination.
	ErrUnsafePath = errors.New("unsafe archive entry path")
	// ErrUnsupported is returned for source entries that cannot be archived, such as devices or sockets.
	ErrUnsupported = errors.New("unsupported file type")
)

// FS is the filesystem used for all archive operations.
var FS = afero.NewOsFs()

// PartName returns the name of the i'th split part of archive.
func PartName(archive string, i int) string {
	return archive + "." + string([]byte{byte('a' + i/26), byte('a' + i%26)})
}

// IsFirstPart reports whether name is a whole archive or the first part of a split one.
func IsFirstPart(name string) bool {
	return strings.HasSuffix(name, Ext) || strings.HasSuffix(name, Ext+".aa")
}

// FindParts returns the files that make up the archive at p, in stream order.
// p may name the whole archive, the archive name of a split set, or any one of its parts.
func FindParts(p string) ([]string, error) {
	base := trimPartSuffix(p)

	if isFile(base) {
		return []string{base}, nil
	}

	var parts []string

	for i := range maxParts {
		name := PartName(base, i)
		if !isFile(name) {
			break
		}

		parts = append(parts, name)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchive, p)
	}

	return parts, nil
}

// ReadTotalChecksum returns the total checksum embedded in the archive formed by parts.
// Only the leading global header is decompressed.
func ReadTotalChecksum(parts []string) (string, error) {
	total, _, err := readHead(parts)

	return total, err
}

// readHead returns the embedded total checksum and the name of the archive's root entry.
func readHead(parts []string) (string, string, error) {
	r, closeAll, err := openParts(parts)
	if err != nil {
		return "", "", err
	}

	defer closeAll()

	bz, err := bzip2.NewReader(r, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrFormat, err)
	}

	tr := tar.NewReader(bz)

	hdr, err := tr.Next()
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrFormat, parts[0], err)
	}

	total := hdr.PAXRecords[checksum.TotalKey]
	if hdr.Typeflag != tar.TypeXGlobalHeader || total == "" {
		return "", "", fmt.Errorf("%w: %s: missing %s header", ErrFormat, parts[0], checksum.TotalKey)
	}

	hdr, err = tr.Next()
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %w", ErrFormat, parts[0], err)
	}

	root, _, _ := strings.Cut(path.Clean(hdr.Name), "/")

	return total, root, nil
}

// openParts returns a reader over the concatenation of parts and a function closing them all.
func openParts(parts []string) (io.Reader, func(), error) {
	files := make([]afero.File, 0, len(parts))
	closeAll := func() {
		for _, f := range files {
			f.Close() //nolint:errcheck
		}
	}

	readers := make([]io.Reader, 0, len(parts))

	for _, p := range parts {
		f, err := FS.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%w: %w", ErrNoArchive, err)
		}

		files = append(files, f)
		readers = append(readers, f)
	}

	return io.MultiReader(readers...), closeAll, nil
}

// removeParts deletes the whole archive at base and every contiguous split part.
func removeParts(base string) error {
	if err := FS.Remove(base); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err //nolint:wrapcheck
	}

	for i := range maxParts {
		err := FS.Remove(PartName(base, i))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}

		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func trimPartSuffix(p string) string {
	n := len(p)
	if n < len(Ext)+3 || p[n-3] != '.' || !isLower(p[n-2]) || !isLower(p[n-1]) {
		return p
	}

	if !strings.HasSuffix(p[:n-3], Ext) {
		return p
	}

	return p[:n-3]
}

func isLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isFile(p string) bool {
	fi, err := FS.Stat(p)

	return err == nil && fi.Mode().IsRegular()
}
