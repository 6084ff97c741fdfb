// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package wtar

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

// ZipExt is the extension of single file DEFLATE archives.
const ZipExt = ".wzip"

// Zip writes the raw DEFLATE compressed content of src to dst, src+".wzip" when dst is empty.
// It returns the path written.
func Zip(ctx context.Context, src, dst string, level int) (string, error) {
	if dst == "" {
		dst = src + ZipExt
	}

	in, err := FS.Open(src)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	defer in.Close() //nolint:errcheck

	out, err := FS.Create(dst)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	defer out.Close() //nolint:errcheck

	zw, err := flate.NewWriter(out, level)
	if err != nil {
		return "", fmt.Errorf("cannot compress %s: %w", src, err)
	}

	if _, err := io.Copy(zw, in); err != nil {
		return "", fmt.Errorf("cannot compress %s: %w", src, err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("cannot compress %s: %w", src, err)
	}

	ctxlog.Debug(ctx, "compressed file", "src", src, "dst", dst, "level", level)

	return dst, out.Close() //nolint:wrapcheck
}

// Unzip decompresses a .wzip file to dst, src without its extension when dst is empty.
// It returns the path written.
func Unzip(ctx context.Context, src, dst string) (string, error) {
	if dst == "" {
		dst = strings.TrimSuffix(src, ZipExt)
		if dst == src {
			return "", fmt.Errorf("cannot derive destination for %s: missing %s extension", src, ZipExt)
		}
	}

	in, err := FS.Open(src)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	defer in.Close() //nolint:errcheck

	out, err := FS.Create(dst)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	defer out.Close() //nolint:errcheck

	zr := flate.NewReader(in)
	defer zr.Close() //nolint:errcheck

	if _, err := io.Copy(out, zr); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFormat, src, err)
	}

	ctxlog.Debug(ctx, "decompressed file", "src", src, "dst", dst)

	return dst, out.Close() //nolint:wrapcheck
}
