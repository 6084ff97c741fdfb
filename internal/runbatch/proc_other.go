// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !unix

package runbatch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/matt-FFFFFF/stevedore/internal/ctxlog"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// killTree kills the process. Descendants are not tracked on this platform.
func killTree(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		ctxlog.Error(ctx, "process kill error", "pid", ps.Pid, "error", err)
	}
}

func lookPath(p string) (string, error) {
	if strings.ContainsAny(p, `\/`) {
		return p, nil
	}

	return exec.LookPath(p) //nolint:wrapcheck
}
