// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/config"
	"github.com/matt-FFFFFF/stevedore/internal/operation"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	t   *testing.T
	reg *operation.Registry
	ec  *operation.ExecContext
	dir string
	out *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := config.Default()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.Ignore = nil

	dir := t.TempDir()
	out := &bytes.Buffer{}

	ec := operation.NewExecContext(cfg)
	ec.PushCwd(dir)
	ec.Stdout = out
	ec.Stderr = out

	return &env{t: t, reg: NewRegistry(), ec: ec, dir: dir, out: out}
}

func (e *env) op(kind string, raw map[string]any) operation.Operation {
	e.t.Helper()

	op, err := e.reg.New(kind, raw)
	require.NoError(e.t, err)

	return op
}

func (e *env) run(kind string, raw map[string]any) error {
	e.t.Helper()
	return operation.Execute(context.Background(), e.ec, e.op(kind, raw))
}

func (e *env) path(rel string) string {
	return filepath.Join(e.dir, filepath.FromSlash(rel))
}

func (e *env) write(rel, content string) {
	e.t.Helper()

	p := e.path(rel)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(e.t, os.WriteFile(p, []byte(content), 0o644))
}

func (e *env) read(rel string) string {
	e.t.Helper()

	b, err := os.ReadFile(e.path(rel))
	require.NoError(e.t, err)

	return string(b)
}

func TestMakeDirAndChmod(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.run("make_dir", map[string]any{"path": "a/b", "chmod": "0700"}))

	fi, err := os.Stat(e.path("a/b"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, os.FileMode(0o700), fi.Mode().Perm())

	e.write("a/b/f", "x")
	require.NoError(t, os.Symlink("f", e.path("a/b/l")))
	require.NoError(t, e.run("chmod", map[string]any{"path": "a", "mode": "0750", "recursive": true}))

	for _, p := range []string{"a", "a/b", "a/b/f"} {
		fi, err := os.Stat(e.path(p))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o750), fi.Mode().Perm(), p)
	}
}

func TestTouch(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.run("touch", map[string]any{"path": "t"}))
	assert.FileExists(t, e.path("t"))

	stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	stubs := gostub.Stub(&now, func() time.Time { return stamp })
	defer stubs.Reset()

	require.NoError(t, e.run("touch", map[string]any{"path": "t"}))

	fi, err := os.Stat(e.path("t"))
	require.NoError(t, err)
	assert.True(t, stamp.Equal(fi.ModTime()))
}

func TestRemove(t *testing.T) {
	e := newEnv(t)

	e.write("d/f", "x")
	e.write("g", "x")

	err := e.run("rm_file", map[string]any{"path": "d"})
	require.ErrorIs(t, err, ErrIsDir)

	err = e.run("rm_dir", map[string]any{"path": "g"})
	require.ErrorIs(t, err, ErrNotDir)

	require.NoError(t, e.run("rm_file", map[string]any{"path": "g"}))
	require.NoError(t, e.run("rm_dir", map[string]any{"path": "d"}))
	assert.NoFileExists(t, e.path("g"))
	assert.NoDirExists(t, e.path("d"))

	// Removing what is already gone succeeds.
	require.NoError(t, e.run("rm_file_or_dir", map[string]any{"path": "d"}))
	require.NoError(t, e.run("rm_file", map[string]any{"path": "g"}))

	var oe *operation.OpError

	e.write("h", "x")
	err = e.run("rm_dir", map[string]any{"path": "h"})
	require.ErrorAs(t, err, &oe)
	require.Len(t, oe.Paths, 1)
	assert.Equal(t, e.path("h"), oe.Paths[0].Path)
	assert.True(t, oe.Paths[0].Exists)
}

func TestSymlink(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.run("symlink", map[string]any{"target": "../x", "link": "sub/l"}))
	target, err := os.Readlink(e.path("sub/l"))
	require.NoError(t, err)
	assert.Equal(t, "../x", target)

	// Same target is left alone, a new target replaces the link.
	require.NoError(t, e.run("symlink", map[string]any{"target": "../x", "link": "sub/l"}))
	require.NoError(t, e.run("symlink", map[string]any{"target": "y", "link": "sub/l"}))
	target, err = os.Readlink(e.path("sub/l"))
	require.NoError(t, err)
	assert.Equal(t, "y", target)

	require.NoError(t, os.Mkdir(e.path("dir"), 0o755))
	err = e.run("symlink", map[string]any{"target": "y", "link": "dir"})
	require.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, e.run("symlink", map[string]any{
		"target": "y", "link": "dir", operation.ParamIgnoreErrors: []string{"exists"},
	}))
}

func TestMove(t *testing.T) {
	e := newEnv(t)
	e.write("a", "content")

	require.NoError(t, e.run("move", map[string]any{"src": "a", "dst": "b"}))
	assert.Equal(t, "content", e.read("b"))

	err := e.run("move", map[string]any{"src": "a", "dst": "b"})
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, e.run("move", map[string]any{"src": "a", "dst": "b", operation.ParamIgnoreErrors: []string{"not_found"}}))
}

func TestChown_NoChange(t *testing.T) {
	e := newEnv(t)
	e.write("f", "x")

	require.NoError(t, e.run("chown", map[string]any{"path": "f", "recursive": true}))
}

func TestCopyOps(t *testing.T) {
	e := newEnv(t)

	e.write("src/a", "alpha")
	e.write("src/sub/b", "beta")
	e.write("src/skip.tmp", "no")
	require.NoError(t, os.Symlink("a", e.path("src/link")))

	require.NoError(t, e.run("copy_dir_to_dir", map[string]any{"src": "src", "dst": "out", "ignore": []string{"*.tmp"}}))
	assert.Equal(t, "alpha", e.read("out/src/a"))
	assert.Equal(t, "beta", e.read("out/src/sub/b"))
	assert.NoFileExists(t, e.path("out/src/skip.tmp"))

	target, err := os.Readlink(e.path("out/src/link"))
	require.NoError(t, err)
	assert.Equal(t, "a", target)

	e.write("flat/extra", "old")
	require.NoError(t, e.run("copy_dir_contents_to_dir", map[string]any{
		"src": "src", "dst": "flat", "delete_extraneous": true, "preserve_symlinks": false,
	}))
	assert.Equal(t, "alpha", e.read("flat/a"))
	assert.Equal(t, "alpha", e.read("flat/link"))
	assert.NoFileExists(t, e.path("flat/extra"))

	require.NoError(t, e.run("copy_file_to_file", map[string]any{"src": "src/a", "dst": "one/a", "hard_links": true}))
	assert.Equal(t, "alpha", e.read("one/a"))

	require.NoError(t, e.run("copy_file_to_file", map[string]any{"src": "src/link", "dst": "one/link"}))
	target, err = os.Readlink(e.path("one/link"))
	require.NoError(t, err)
	assert.Equal(t, "a", target)
}

func TestArchiveOps(t *testing.T) {
	e := newEnv(t)

	e.write("payload/hootenanny", "")
	e.write("payload/sub/data", strings.Repeat("stevedore ", 100))

	require.NoError(t, e.run("wtar", map[string]any{"src": "payload", "dst": "archives"}))
	assert.FileExists(t, e.path("archives/payload.wtar"))

	require.NoError(t, e.run("checksum_report", map[string]any{"root": "payload", "report": "before.txt"}))

	require.NoError(t, e.run("unwtar", map[string]any{"src": "archives/payload.wtar", "dst": "restored", "remove_artifacts": true}))
	assert.NoFileExists(t, e.path("archives/payload.wtar"))

	require.NoError(t, e.run("checksum_report", map[string]any{"root": "restored/payload", "report": "after.txt"}))
	assert.Equal(t, e.read("before.txt"), e.read("after.txt"))
	assert.Contains(t, e.read("before.txt"), "total checksum,")

	require.NoError(t, e.run("wtar", map[string]any{"src": "payload", "dst": "tree/x"}))
	require.NoError(t, e.run("unwtar_tree", map[string]any{"root": "tree"}))
	assert.Equal(t, "", e.read("tree/x/payload/hootenanny"))

	require.NoError(t, e.run("wzip", map[string]any{"src": "payload/sub/data"}))
	require.NoError(t, e.run("unwzip", map[string]any{"src": "payload/sub/data.wzip", "dst": "data.out"}))
	assert.Equal(t, e.read("payload/sub/data"), e.read("data.out"))
}

func TestPack_SplitThreshold(t *testing.T) {
	e := newEnv(t)
	e.ec.Config.SplitThreshold = 32

	e.write("payload/hootenanny", "")
	e.write("payload/sub/data", strings.Repeat("stevedore ", 100))

	require.NoError(t, e.run("wtar", map[string]any{"src": "payload", "dst": "split"}))
	assert.FileExists(t, e.path("split/payload.wtar.aa"))
	assert.FileExists(t, e.path("split/payload.wtar.ab"))
	assert.NoFileExists(t, e.path("split/payload.wtar"))

	require.NoError(t, e.run("wtar", map[string]any{"src": "payload", "dst": "whole", "split_threshold": 0}))
	assert.FileExists(t, e.path("whole/payload.wtar"))
	assert.NoFileExists(t, e.path("whole/payload.wtar.aa"))

	require.NoError(t, e.run("unwtar", map[string]any{"src": "split/payload.wtar.aa", "dst": "restored"}))
	assert.Equal(t, e.read("payload/sub/data"), e.read("restored/payload/sub/data"))
}

func TestCdScope(t *testing.T) {
	e := newEnv(t)

	cd := e.op("cd", map[string]any{"path": "work", "create": true}).(operation.Scope)
	cd.Append(e.op("touch", map[string]any{"path": "inside"}))

	require.NoError(t, operation.Execute(context.Background(), e.ec, cd))
	assert.FileExists(t, e.path("work/inside"))
	assert.Equal(t, e.dir, e.ec.Cwd())

	err := operation.Execute(context.Background(), e.ec, e.op("cd", map[string]any{"path": "work/inside"}))
	require.ErrorIs(t, err, ErrNotDir)
}

func TestMessages(t *testing.T) {
	e := newEnv(t)
	e.ec.TotalProgress = 5

	require.NoError(t, e.run("section_comment", map[string]any{"text": "nothing happens"}))
	require.NoError(t, e.run("echo", map[string]any{"message": "hello"}))
	require.NoError(t, e.run("progress", map[string]any{"message": "copying"}))
	require.NoError(t, e.run("assign", map[string]any{"name": "STEVEDORE_TEST", "value": "42"}))

	assert.Equal(t, "hello\nProgress: 1 of 5; copying\n", e.out.String())

	v, ok := e.ec.Var("STEVEDORE_TEST")
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestShell(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.run("assign", map[string]any{"name": "GREETING", "value": "ahoy"}))
	require.NoError(t, e.run("shell", map[string]any{"command": "echo $GREETING > greeting; pwd"}))

	assert.Equal(t, "ahoy\n", e.read("greeting"))
	assert.Contains(t, e.out.String(), e.dir)

	err := e.run("shell", map[string]any{"command": "exit 3"})
	require.Error(t, err)
}

func TestParallelRun(t *testing.T) {
	e := newEnv(t)

	e.write("commands", strings.Join([]string{
		"# first wave",
		"echo one > one",
		"echo two > two",
		"wait",
		"cat one two > both",
		"",
	}, "\n"))

	require.NoError(t, e.run("parallel_run", map[string]any{"commands_file": "commands"}))
	assert.Equal(t, "one\ntwo\n", e.read("both"))
}

func TestReadCommands(t *testing.T) {
	cmds, err := readCommands(strings.NewReader("a b\n\n# c\nwait\n d  e \n"), false)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"wait"}, {"d", "e"}}, cmds)

	cmds, err = readCommands(strings.NewReader("a b\nwait\n"), true)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a b"}, {"wait"}}, cmds)
}

func TestDownload_RunsWorkers(t *testing.T) {
	e := newEnv(t)
	e.ec.Config.CurlPath = "true"

	e.write("urls", "https://example.com/a a\nhttps://example.com/b sub/b\nhttps://example.com/c c\n")

	require.NoError(t, e.run("download", map[string]any{"urls_file": "urls", "dir": "dl", "workers": 2}))

	cfg := e.read("dl/.stevedore/curl-01.config")
	assert.Contains(t, cfg, "https://example.com/a")
	assert.Contains(t, cfg, "https://example.com/c")
	assert.Contains(t, e.read("dl/.stevedore/curl-02.config"), filepath.Join(e.path("dl"), "sub", "b"))
}
