// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	"github.com/matt-FFFFFF/stevedore/internal/config"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
	"github.com/spf13/afero"
)

// WriteFile renders a to path as an executable program. opts.Self is set to path.
func WriteFile(fs afero.Fs, path string, a *Accumulator, opts RenderOptions) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err //nolint:wrapcheck
	}

	opts.Self = abs

	var buf bytes.Buffer
	if err := Render(&buf, a, opts); err != nil {
		return err
	}

	if err := fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err //nolint:wrapcheck
	}

	return afero.WriteFile(fs, abs, buf.Bytes(), 0o755) //nolint:wrapcheck
}

// Spawn runs the program at path in a new process of exe, forwarding its output once it exits.
// args are appended to the run command line. The process inherits the working directory.
// The process is stopped when ctx is cancelled or the configured abort file disappears.
func Spawn(ctx context.Context, cfg *config.Config, exe, path string, stdout, stderr io.Writer, args ...string) error {
	r := &runbatch.Runner{
		AbortFile:    cfg.AbortFile,
		PollInterval: cfg.PollInterval,
		Label:        filepath.Base(path),
	}

	results, err := r.Run(ctx, [][]string{append([]string{exe, "run", "-f", path}, args...)})

	for _, res := range results.Leaves() {
		_, _ = stdout.Write(res.StdOut)
		_, _ = stderr.Write(res.StdErr)
	}

	return err //nolint:wrapcheck
}
