// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runbatch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}

	// The state follows the parenthesised command name.
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))

	return len(fields) > 0 && fields[0] != "Z"
}

func TestRunner_AbortFileKillsProcessTree(t *testing.T) {
	dir := t.TempDir()
	abort := filepath.Join(dir, "abort")
	pidFile := filepath.Join(dir, "pid")
	require.NoError(t, os.WriteFile(abort, nil, 0o644))

	r := &Runner{PollInterval: testPoll, AbortFile: abort, Shell: "/bin/sh"}

	type outcome struct {
		err     error
		elapsed time.Duration
	}

	done := make(chan outcome, 1)

	go func() {
		_, err := r.Run(context.Background(), [][]string{{"sleep 30 & echo $! > " + pidFile + "; wait"}})
		done <- outcome{err: err}
	}()

	var pid int

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}

		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))

		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	require.True(t, processAlive(pid))

	removed := time.Now()
	require.NoError(t, os.Remove(abort))

	var res outcome
	select {
	case res = <-done:
		res.elapsed = time.Since(removed)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after the abort file was removed")
	}

	require.ErrorIs(t, res.err, ErrAborted)
	assert.NotErrorIs(t, res.err, ErrNonZeroExit)
	assert.Less(t, res.elapsed, 5*time.Second)

	assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond,
		"background child must be killed with its parent")
}
