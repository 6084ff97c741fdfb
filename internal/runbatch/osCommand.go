// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

const (
	maxBufferSize = 8 * 1024 * 1024 // 8MB
	// DefaultPollInterval is used when a command has no poll interval set.
	DefaultPollInterval = 500 * time.Millisecond
	announceInterval    = 10 * time.Second
)

var _ Runnable = (*OSCommand)(nil)

var (
	// ErrBufferOverflow is returned when the output exceeds the max size.
	ErrBufferOverflow = fmt.Errorf("output exceeds max size of %d bytes", maxBufferSize)
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrFailedToReadBuffer is returned when the output pipe could not be read.
	ErrFailedToReadBuffer = errors.New("failed to read buffer")
	// ErrFailedToCreatePipe is returned when the operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrNonZeroExit is returned when a process exits with a non-zero code.
	ErrNonZeroExit = errors.New("process exited with non-zero code")
)

// OSCommand is a single process to run.
type OSCommand struct {
	*BaseCommand
	Path         string        // The executable, resolved against PATH when it has no separator.
	Args         []string      // Arguments, not including the executable name itself.
	PollInterval time.Duration // How often the process is checked for completion and cancellation.
}

// NewOSCommand returns a command running argv[0] with the remaining arguments.
func NewOSCommand(label string, argv []string, cwd string, env map[string]string) *OSCommand {
	cmd := &OSCommand{BaseCommand: NewBaseCommand(label, cwd, env)}
	if len(argv) > 0 {
		cmd.Path = argv[0]
		cmd.Args = argv[1:]
	}

	return cmd
}

// Run implements the Runnable interface for OSCommand.
func (c *OSCommand) Run(ctx context.Context) Results {
	label := FullLabel(c)
	logger := ctxlog.Logger(ctx).
		With("runnableType", "OSCommand").
		With("label", label)

	res := &Result{Label: c.GetLabel()}

	if err := ctx.Err(); err != nil {
		res.Error = causeError(ctx)
		res.ExitCode = -1
		res.Status = ResultStatusError

		return Results{res}
	}

	path, err := lookPath(c.Path)
	if err != nil {
		res.Error = errors.Join(ErrCouldNotStartProcess, err)
		res.ExitCode = -1
		res.Status = ResultStatusError

		return Results{res}
	}

	env := os.Environ()
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}

	rOut, wOut, err := os.Pipe()
	if err != nil {
		res.Error = errors.Join(ErrFailedToCreatePipe, err)
		res.ExitCode = -1
		res.Status = ResultStatusError

		return Results{res}
	}

	rErr, wErr, err := os.Pipe()
	if err != nil {
		_ = rOut.Close()
		_ = wOut.Close()
		res.Error = errors.Join(ErrFailedToCreatePipe, err)
		res.ExitCode = -1
		res.Status = ResultStatusError

		return Results{res}
	}

	args := slices.Concat([]string{filepath.Base(path)}, c.Args)

	logger.Debug("starting process", "path", path, "cwd", c.Cwd, "args", c.Args)

	startTime := time.Now()
	ps, err := os.StartProcess(path, args, &os.ProcAttr{
		Dir:   c.Cwd,
		Env:   env,
		Files: []*os.File{os.Stdin, wOut, wErr},
		Sys:   sysProcAttr(),
	})

	// The child holds its own copies of the write ends.
	_ = wOut.Close()
	_ = wErr.Close()

	if err != nil {
		_ = rOut.Close()
		_ = rErr.Close()
		res.Error = errors.Join(ErrCouldNotStartProcess, err)
		res.ExitCode = -1
		res.Status = ResultStatusError

		return Results{res}
	}

	logger.Debug("process started", "pid", ps.Pid)

	stdout := readAsync(ctx, rOut)
	stderr := readAsync(ctx, rErr)

	type waitResult struct {
		state *os.ProcessState
		err   error
	}

	waitCh := make(chan waitResult, 1)

	go func() {
		state, err := ps.Wait()
		waitCh <- waitResult{state: state, err: err}
	}()

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastAnnounce := startTime

	var (
		wr     waitResult
		killed error
	)

poll:
	for {
		select {
		case wr = <-waitCh:
			break poll
		case <-ctx.Done():
			killed = causeError(ctx)
			logger.Info("stopping process", "pid", ps.Pid, "reason", killed)
			killTree(ctx, ps)
			wr = <-waitCh

			break poll
		case <-ticker.C:
			if time.Since(lastAnnounce) >= announceInterval {
				lastAnnounce = time.Now()
				logger.Info("still running", "pid", ps.Pid, "elapsed", time.Since(startTime).Round(time.Second))
			}
		}
	}

	// Descendants left behind by the process would keep the output pipes open.
	killTree(ctx, ps)

	res.Duration = time.Since(startTime)

	switch {
	case killed != nil:
		res.Error = killed
		res.ExitCode = -1
		res.Status = ResultStatusError
	case wr.err != nil:
		res.Error = wr.err
		res.ExitCode = -1
		res.Status = ResultStatusError
	case wr.state.ExitCode() != 0:
		res.ExitCode = wr.state.ExitCode()
		res.Error = fmt.Errorf("%w: %d", ErrNonZeroExit, res.ExitCode)
		res.Status = ResultStatusError
	default:
		res.Status = ResultStatusSuccess
	}

	outRes := <-stdout
	errRes := <-stderr

	res.StdOut = outRes.data
	res.StdErr = errRes.data

	if err := errors.Join(outRes.err, errRes.err); err != nil {
		res.Error = errors.Join(res.Error, err)
		res.Status = ResultStatusError

		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
	}

	logger.Debug("process finished", "exitCode", res.ExitCode, "duration", res.Duration)

	return Results{res}
}

type readResult struct {
	data []byte
	err  error
}

// readAsync drains r in the background and closes it when done.
func readAsync(ctx context.Context, r *os.File) <-chan readResult {
	ch := make(chan readResult, 1)

	go func() {
		defer r.Close() //nolint:errcheck

		data, err := readAllUpToMax(ctx, r, maxBufferSize)
		ch <- readResult{data: data, err: err}
	}()

	return ch
}

func readAllUpToMax(ctx context.Context, r io.Reader, maxBufferSize int64) ([]byte, error) {
	var buf bytes.Buffer

	n, err := io.CopyN(&buf, r, maxBufferSize+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrFailedToReadBuffer, err)
	}

	if n > maxBufferSize {
		ctxlog.Debug(ctx, "buffer overflow in readAllUpToMax", "bytesRead", n, "maxBytes", maxBufferSize)

		// Keep draining so the writer does not block on a full pipe.
		_, _ = io.Copy(io.Discard, r)

		return buf.Bytes()[:maxBufferSize], ErrBufferOverflow
	}

	return buf.Bytes(), nil
}
