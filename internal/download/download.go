// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package download plans bulk downloads as a wave of curl processes.
//
// Items are dealt round-robin to a number of workers. Each worker gets its own curl config file,
// so workers share nothing but the filesystem they write to.
package download

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const defaultRetries = 3

var (
	// ErrNoItems is returned when there is nothing to download.
	ErrNoItems = errors.New("no items to download")
	// ErrInvalidList is returned for malformed download list lines.
	ErrInvalidList = errors.New("invalid download list")
)

// FS is the filesystem the worker config files are written to.
var FS = afero.NewOsFs()

// Item is one URL and the path its content is saved to.
type Item struct {
	URL  string
	Path string
}

// Options configures Plan.
type Options struct {
	// Workers is the number of concurrent curl processes. Values below one mean one.
	Workers int
	// ConfigDir receives one config file per worker.
	ConfigDir string
	// CurlPath is the curl executable, "curl" when empty.
	CurlPath string
	// Retries is passed to curl's retry option. Zero uses the default.
	Retries int
}

// Plan writes the worker config files and returns one curl command per worker.
// The commands form a single wave. With one worker and several items, curl transfers them in parallel itself.
func Plan(items []Item, opts Options) ([][]string, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	workers := min(max(opts.Workers, 1), len(items))

	curl := opts.CurlPath
	if curl == "" {
		curl = "curl"
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	if err := FS.MkdirAll(opts.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create download config dir: %w", err)
	}

	shares := make([][]Item, workers)
	for i, it := range items {
		shares[i%workers] = append(shares[i%workers], it)
	}

	cmds := make([][]string, 0, workers)

	for i, share := range shares {
		name := filepath.Join(opts.ConfigDir, fmt.Sprintf("curl-%02d.config", i+1))

		if err := writeConfig(name, share, retries); err != nil {
			return nil, err
		}

		cmd := []string{curl, "--config", name}
		if workers == 1 && len(share) > 1 {
			cmd = append(cmd, "--parallel")
		}

		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

func writeConfig(name string, items []Item, retries int) error {
	var sb strings.Builder

	sb.WriteString("create-dirs\nfail\nlocation\nsilent\nshow-error\n")
	fmt.Fprintf(&sb, "retry = %d\n", retries)

	for _, it := range items {
		fmt.Fprintf(&sb, "url = %s\noutput = %s\n", quote(it.URL), quote(it.Path))
	}

	if err := afero.WriteFile(FS, name, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("cannot write download config %s: %w", name, err)
	}

	return nil
}

// quote renders s as a double quoted curl config string.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

	return `"` + r.Replace(s) + `"`
}

// ReadList parses a download list: one "<url> <path>" pair per line.
// Blank lines and lines starting with # are skipped. Relative paths are resolved against dir.
func ReadList(r io.Reader, dir string) ([]Item, error) {
	var items []Item

	sc := bufio.NewScanner(r)
	line := 0

	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: want \"<url> <path>\"", ErrInvalidList, line)
		}

		p := fields[1]
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}

		items = append(items, Item{URL: fields[0], Path: p})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidList, err)
	}

	return items, nil
}
