// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build unix

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

// sysProcAttr starts every process as the leader of a new process group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills the process group led by ps.
func killTree(ctx context.Context, ps *os.Process) {
	err := syscall.Kill(-ps.Pid, syscall.SIGKILL)

	switch {
	case err == nil:
		ctxlog.Debug(ctx, "process group killed", "pgid", ps.Pid)
	case errors.Is(err, syscall.ESRCH):
	default:
		ctxlog.Error(ctx, "process group kill error", "pgid", ps.Pid, "error", err)
	}
}

func lookPath(p string) (string, error) {
	if strings.ContainsRune(p, os.PathSeparator) {
		return p, nil
	}

	return exec.LookPath(p) //nolint:wrapcheck
}
