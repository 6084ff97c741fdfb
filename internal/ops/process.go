// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
	"github.com/matt-FFFFFF/stevedore/internal/download"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
)

const quarantineAttr = "com.apple.quarantine"

func processDefinitions() []operation.Definition {
	return []operation.Definition{
		{
			Kind:        "shell",
			Description: "run a shell command line",
			Essential:   true,
			Params: []operation.ParamSpec{
				{Name: "command", Type: operation.TypeString, Required: true},
				{Name: "shell", Type: operation.TypeString, Default: "", Doc: "shell executable, the configured shell when empty"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if strings.TrimSpace(b.P().String("command")) == "" {
					return nil, fmt.Errorf("%w: empty command", operation.ErrInvalidParams)
				}

				return &shell{Base: b}, nil
			},
		},
		{
			Kind:        "parallel_run",
			Description: "run the commands listed in a file in parallel, in waves separated by wait lines",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("commands_file", "one command per line"),
				{Name: "shell", Type: operation.TypeString, Default: "", Doc: "shell executable, the configured shell when empty"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &parallelRun{Base: b}, nil
			},
		},
		{
			Kind:        "download",
			Description: "download the URLs listed in a file with parallel curl workers",
			Essential:   true,
			Params: []operation.ParamSpec{
				pathParam("urls_file", "one \"<url> <path>\" pair per line"),
				pathParam("dir", "directory relative paths are saved under"),
				{Name: "workers", Type: operation.TypeInt, Default: 0, Doc: "curl processes, 0 uses the configured number"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				if b.P().Int("workers") < 0 {
					return nil, fmt.Errorf("%w: workers must not be negative", operation.ErrInvalidParams)
				}

				return &downloadOp{Base: b}, nil
			},
		},
		{
			Kind:        "rm_quarantine",
			Description: "remove the quarantine attribute from a tree",
			Essential:   true,
			Platforms:   operation.Mac,
			Params:      []operation.ParamSpec{pathParam("path", "file or directory")},
			New: func(b operation.Base) (operation.Operation, error) {
				return &command{Base: b, argv: func(ec *operation.ExecContext, p operation.Params) []string {
					return []string{"xattr", "-r", "-d", quarantineAttr, ec.Abs(p.String("path"))}
				}}, nil
			},
		},
		{
			Kind:        "win_attrib",
			Description: "change file attributes",
			Essential:   true,
			Platforms:   operation.Windows,
			Params: []operation.ParamSpec{
				pathParam("path", "file or directory"),
				{Name: "flags", Type: operation.TypeString, Required: true, Doc: "attrib flags such as +h -r"},
			},
			New: func(b operation.Base) (operation.Operation, error) {
				return &command{Base: b, argv: func(ec *operation.ExecContext, p operation.Params) []string {
					return append(append([]string{"attrib"}, strings.Fields(p.String("flags"))...), ec.Abs(p.String("path")))
				}}, nil
			},
		},
	}
}

// runner returns a process runner for the current state of ec.
func runner(ec *operation.ExecContext, label, sh string) *runbatch.Runner {
	return &runbatch.Runner{
		AbortFile:    ec.Config.AbortFile,
		PollInterval: ec.Config.PollInterval,
		Shell:        sh,
		Cwd:          ec.Cwd(),
		Env:          ec.Vars(),
		Label:        label,
	}
}

// run runs cmds and copies the output of every process to ec.
func run(ctx context.Context, ec *operation.ExecContext, r *runbatch.Runner, cmds [][]string) error {
	ec.Step("running " + r.Label)

	results, err := r.Run(ctx, cmds)
	if err != nil {
		if werr := results.Write(ec.Stderr); werr != nil {
			ctxlog.Warn(ctx, "failed to write process results", "error", werr)
		}

		return err //nolint:wrapcheck
	}

	for _, res := range results.Leaves() {
		_, _ = ec.Stdout.Write(res.StdOut)
		_, _ = ec.Stderr.Write(res.StdErr)
	}

	return nil
}

func shellFor(ec *operation.ExecContext, p operation.Params) string {
	if sh := p.String("shell"); sh != "" {
		return sh
	}

	return ec.Config.Shell
}

type shell struct {
	operation.Base
}

func (s *shell) ProgressMessage() string {
	return "shell " + s.P().String("command")
}

func (s *shell) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	sh := shellFor(ec, s.P())
	cmd := []string{s.P().String("command")}

	if sh == "" {
		cmd = strings.Fields(cmd[0])
	}

	return run(ctx, ec, runner(ec, "shell", sh), [][]string{cmd})
}

type parallelRun struct {
	operation.Base
}

func (p *parallelRun) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	file := ec.Abs(p.P().String("commands_file"))
	sh := shellFor(ec, p.P())

	ec.Step("reading " + file)

	f, err := FS.Open(file)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer f.Close() //nolint:errcheck

	cmds, err := readCommands(f, sh != "")
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	return run(ctx, ec, runner(ec, filepath.Base(file), sh), cmds)
}

// readCommands parses a command list. Blank lines and # comments are skipped.
// Lines are kept whole for a shell, otherwise split into words.
func readCommands(r io.Reader, whole bool) ([][]string, error) {
	var cmds [][]string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if whole || line == runbatch.WaitMarker {
			cmds = append(cmds, []string{line})
			continue
		}

		cmds = append(cmds, strings.Fields(line))
	}

	return cmds, sc.Err() //nolint:wrapcheck
}

type downloadOp struct {
	operation.Base
}

func (d *downloadOp) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	list := ec.Abs(d.P().String("urls_file"))
	dir := ec.Abs(d.P().String("dir"))

	ec.Step("reading " + list)

	f, err := FS.Open(list)
	if err != nil {
		return err //nolint:wrapcheck
	}

	items, err := download.ReadList(f, dir)
	_ = f.Close()

	if err != nil {
		return fmt.Errorf("%s: %w", list, err)
	}

	workers := int(d.P().Int("workers"))
	if workers == 0 {
		workers = ec.Config.DownloadWorkers
	}

	configDir := dir
	if len(ec.Config.BookkeepingDirs) > 0 {
		configDir = filepath.Join(dir, ec.Config.BookkeepingDirs[0])
	}

	ec.Step("writing download configs to " + configDir)

	cmds, err := download.Plan(items, download.Options{
		Workers:   workers,
		ConfigDir: configDir,
		CurlPath:  ec.Config.CurlPath,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	return run(ctx, ec, runner(ec, "download", ""), cmds)
}

// command runs a single fixed process.
type command struct {
	operation.Base
	argv func(ec *operation.ExecContext, p operation.Params) []string
}

func (c *command) Invoke(ctx context.Context, ec *operation.ExecContext) error {
	return run(ctx, ec, runner(ec, c.Kind(), ""), [][]string{c.argv(ec, c.P())})
}
