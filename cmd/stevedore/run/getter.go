// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

const (
	getterSubdirSeparator = "//"
	getterQuerySeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// getURL returns the content of the program file at url.
// Local paths are read directly, anything else is fetched with go-getter into a temporary directory
// that is removed afterwards.
func getURL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrGetProgram
	}

	if fi, err := os.Stat(url); err == nil && !fi.IsDir() {
		b, err := os.ReadFile(url)
		if err != nil {
			return nil, errors.Join(ErrGetProgram, err)
		}

		return b, nil
	}

	tmpDir, err := os.MkdirTemp("", "stevedore-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetProgram, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetProgram, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	// Remote sources are fetched as a directory and the file is read from there.
	// https://github.com/hashicorp/go-getter/issues/98
	var fileName string

	isLocal, err := getter.Detect(req, &getter.FileGetter{})
	if err != nil {
		return nil, errors.Join(ErrGetProgram, err)
	}

	switch isLocal {
	case true:
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	default:
		var dirURL string

		dirURL, fileName = splitGetterURL(url)
		if dirURL == "" || fileName == "" {
			return nil, fmt.Errorf("%w: invalid URL format: %s", ErrGetProgram, url)
		}

		req.Src = dirURL
	}

	ctxlog.Debug(ctx, "fetching program", "src", req.Src, "file", fileName)

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetProgram, err)
	}

	b, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, errors.Join(ErrGetProgram, err)
	}

	return b, nil
}

// splitGetterURL separates the file name from a go-getter URL.
// It returns the URL of the directory holding the file, keeping any query such as a ref,
// and the file name. Both are empty when the URL does not name a file below a subdirectory.
func splitGetterURL(url string) (string, string) {
	parts := strings.Split(url, getterSubdirSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last, query, _ := strings.Cut(parts[len(parts)-1], getterQuerySeparator)

	if last == "" || strings.HasSuffix(last, "/") {
		return "", ""
	}

	fileName := path.Base(last)
	dir := path.Dir(last)

	switch dir {
	case ".":
		parts = parts[:len(parts)-1]
	default:
		parts[len(parts)-1] = dir
	}

	dirURL := strings.Join(parts, getterSubdirSeparator)

	if query != "" {
		dirURL += getterQuerySeparator + query
	}

	return dirURL, fileName
}
