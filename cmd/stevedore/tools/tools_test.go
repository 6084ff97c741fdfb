// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tools

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func runTool(t *testing.T, args ...string) error {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd := &cli.Command{
		Name:      "stevedore",
		Writer:    &out,
		ErrWriter: &errOut,
		Commands:  Commands(),
	}

	return cmd.Run(context.Background(), append([]string{"stevedore"}, args...))
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "payload")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "data.txt"), []byte("cargo"), 0o644))

	archives := filepath.Join(dir, "archives")
	require.NoError(t, runTool(t, "wtar", "--no-summary", src, archives))
	assert.FileExists(t, filepath.Join(archives, "payload.wtar"))

	restored := filepath.Join(dir, "restored")
	require.NoError(t, runTool(t, "unwtar", "--no-summary", "--remove-artifacts", filepath.Join(archives, "payload.wtar"), restored))
	assert.NoFileExists(t, filepath.Join(archives, "payload.wtar"))

	b, err := os.ReadFile(filepath.Join(restored, "payload", "sub", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cargo", string(b))

	before := filepath.Join(dir, "before.txt")
	after := filepath.Join(dir, "after.txt")
	require.NoError(t, runTool(t, "checksum", "--no-summary", src, before))
	require.NoError(t, runTool(t, "checksum", "--no-summary", filepath.Join(restored, "payload"), after))

	wantReport, err := os.ReadFile(before)
	require.NoError(t, err)
	gotReport, err := os.ReadFile(after)
	require.NoError(t, err)
	assert.Equal(t, string(wantReport), string(gotReport))
}

func TestParallel(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one")
	two := filepath.Join(dir, "two")
	both := filepath.Join(dir, "both")

	commands := filepath.Join(dir, "commands")
	require.NoError(t, os.WriteFile(commands, []byte(strings.Join([]string{
		"echo one > " + one,
		"echo two > " + two,
		"wait",
		"cat " + one + " " + two + " > " + both,
		"",
	}, "\n")), 0o644))

	require.NoError(t, runTool(t, "parallel", "--no-summary", commands))

	b, err := os.ReadFile(both)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(b))
}

func TestParallelFailure(t *testing.T) {
	dir := t.TempDir()
	commands := filepath.Join(dir, "commands")
	require.NoError(t, os.WriteFile(commands, []byte("exit 3\n"), 0o644))

	err := runTool(t, "parallel", "--no-summary", commands)

	var oe *operation.OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "parallel_run", oe.Kind)
}

func TestMissingArguments(t *testing.T) {
	require.ErrorIs(t, runTool(t, "wtar"), ErrMissingArgument)
	require.ErrorIs(t, runTool(t, "unwtar", "archive.wtar"), ErrMissingArgument)
	require.ErrorIs(t, runTool(t, "checksum"), ErrMissingArgument)
	require.ErrorIs(t, runTool(t, "parallel"), ErrMissingArgument)
}
