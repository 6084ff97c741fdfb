// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

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
	"github.com/matt-FFFFFF/stevedore/internal/ops"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reg = ops.NewRegistry()

func op(t *testing.T, kind string, raw map[string]any) operation.Operation {
	t.Helper()

	o, err := reg.New(kind, raw)
	require.NoError(t, err)

	return o
}

func scope(t *testing.T, kind string, raw map[string]any, children ...operation.Operation) operation.Scope {
	t.Helper()

	s, ok := op(t, kind, raw).(operation.Scope)
	require.True(t, ok)
	s.Append(children...)

	return s
}

func comment(t *testing.T, text string) operation.Operation {
	return op(t, "section_comment", map[string]any{"text": text})
}

func touch(t *testing.T, p string) operation.Operation {
	return op(t, "touch", map[string]any{"path": p})
}

func TestAccumulator_Sections(t *testing.T) {
	a := New()

	require.ErrorIs(t, a.Add(touch(t, "x")), ErrNoSection)
	require.ErrorIs(t, a.SetCurrentSection("middle"), ErrInvalidSection)

	require.NoError(t, a.SetCurrentSection("post"))
	require.NoError(t, a.Add(touch(t, "last")))
	require.NoError(t, a.SetCurrentSection("pre"))
	require.NoError(t, a.Add(touch(t, "first")))
	require.NoError(t, a.SetCurrentSection("copy"))

	var names []string
	for _, s := range a.Sections() {
		names = append(names, s.Name)
	}

	assert.Equal(t, []string{"pre", "post"}, names)
	assert.Equal(t, "copy", a.CurrentSection())

	a.Reset()
	assert.Empty(t, a.Sections())
	require.ErrorIs(t, a.Add(touch(t, "x")), ErrNoSection)
}

func TestAccumulator_Scopes(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCurrentSection("copy"))

	outer := scope(t, "cd", map[string]any{"path": "/a"})
	inner := scope(t, "stage", map[string]any{"name": "inner"})

	require.NoError(t, a.OpenScope(outer))
	require.NoError(t, a.Add(touch(t, "1")))
	require.NoError(t, a.OpenScope(inner))
	require.NoError(t, a.Add(touch(t, "2")))
	require.NoError(t, a.CloseScope())
	require.NoError(t, a.Add(touch(t, "3")))
	require.NoError(t, a.CloseScope())
	require.ErrorIs(t, a.CloseScope(), ErrNoOpenScope)
	require.NoError(t, a.Add(touch(t, "4")))

	section := a.Section("copy")
	require.Len(t, section, 2)
	assert.Len(t, outer.Children(), 3)
	assert.Len(t, inner.Children(), 1)
	assert.Equal(t, 4, a.TotalProgressCount(operation.Linux))
}

func TestAccumulator_Detached(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCurrentSection("sync"))

	got, err := a.Detached(func(sub *Accumulator) error {
		require.ErrorIs(t, a.Add(touch(t, "outer")), ErrDetached)
		_, err := a.Detached(func(*Accumulator) error { return nil })
		require.ErrorIs(t, err, ErrDetached)

		return sub.Add(touch(t, "a"), touch(t, "b"))
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Empty(t, a.Section("sync"))

	require.NoError(t, a.Add(got...))
	assert.Len(t, a.Section("sync"), 2)
}

func TestPrune(t *testing.T) {
	nonEssential := scope(t, "cd", map[string]any{"path": "/a"},
		comment(t, "only a comment"),
		scope(t, "stage", map[string]any{"name": "empty"}),
	)

	got, essential := Prune([]operation.Operation{nonEssential})
	assert.Empty(t, got)
	assert.False(t, essential)

	withEssential := scope(t, "cd", map[string]any{"path": "/a"},
		comment(t, "kept with its sibling"),
		scope(t, "stage", map[string]any{"name": "empty"}),
		scope(t, "stage", map[string]any{"name": "deep"}, touch(t, "x")),
	)

	got, essential = Prune([]operation.Operation{withEssential})
	require.Len(t, got, 1)
	assert.True(t, essential)

	children := got[0].(operation.Scope).Children()
	require.Len(t, children, 2)
	assert.Equal(t, "section_comment", children[0].Kind())
	assert.Equal(t, "deep", children[1].Params().String("name"))

	// The input is left alone.
	assert.Len(t, withEssential.Children(), 3)

	ownEffect := scope(t, "cd", map[string]any{"path": "/made", "create": true})
	got, _ = Prune([]operation.Operation{ownEffect})
	assert.Len(t, got, 1)

	marked := scope(t, "stage", map[string]any{"name": "keep", operation.ParamEssential: true})
	got, _ = Prune([]operation.Operation{marked})
	assert.Len(t, got, 1)
}

func TestRender_PrunedScopeRendersNothing(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCurrentSection("copy"))
	require.NoError(t, a.Add(scope(t, "cd", map[string]any{"path": "/a"}, comment(t, "nothing"))))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, a, RenderOptions{Target: operation.Linux}))
	assert.NotContains(t, buf.String(), "section")
	assert.NotContains(t, buf.String(), "cd")
	assert.Contains(t, buf.String(), "total_progress   = 0")
}

func TestRender_AssignSortedAndPlatformFiltered(t *testing.T) {
	a := New()
	require.NoError(t, a.SetCurrentSection("assign"))
	require.NoError(t, a.Add(
		op(t, "assign", map[string]any{"name": "ZED", "value": "1"}),
		op(t, "assign", map[string]any{"name": "ALPHA", "value": "2"}),
	))
	require.NoError(t, a.SetCurrentSection("post"))
	require.NoError(t, a.Add(
		op(t, "rm_quarantine", map[string]any{"path": "/Applications/x"}),
		touch(t, "/tmp/y"),
		op(t, "win_attrib", map[string]any{"path": "c", "flags": "+h"}),
	))

	var linux, mac bytes.Buffer
	require.NoError(t, Render(&linux, a, RenderOptions{Target: operation.Linux}))
	require.NoError(t, Render(&mac, a, RenderOptions{Target: operation.Mac}))

	text := linux.String()
	assert.Less(t, strings.Index(text, "ALPHA"), strings.Index(text, "ZED"))
	assert.NotContains(t, text, "rm_quarantine")
	assert.NotContains(t, text, "win_attrib")
	assert.Contains(t, mac.String(), "rm_quarantine")
	assert.Contains(t, mac.String(), `target           = "mac"`)

	// Insertion order is kept for the accumulator itself.
	assert.Equal(t, "ZED", a.Section("assign")[0].Params().String("name"))
}

func buildPlan(t *testing.T, dir string) *Accumulator {
	t.Helper()

	a := New()
	require.NoError(t, a.SetCurrentSection("assign"))
	require.NoError(t, a.Add(op(t, "assign", map[string]any{"name": "TARGET", "value": dir})))

	require.NoError(t, a.SetCurrentSection("begin"))
	require.NoError(t, a.Add(op(t, "make_dir", map[string]any{"path": filepath.Join(dir, "out"), "chmod": "0755"})))

	require.NoError(t, a.SetCurrentSection("copy"))
	require.NoError(t, a.OpenScope(scope(t, "cd", map[string]any{"path": filepath.Join(dir, "out")})))
	require.NoError(t, a.Add(
		comment(t, "files"),
		touch(t, "one"),
		op(t, "shell", map[string]any{"command": "echo $TARGET > two"}),
	))
	require.NoError(t, a.CloseScope())

	require.NoError(t, a.SetCurrentSection("post"))
	require.NoError(t, a.Add(op(t, "checksum_report", map[string]any{
		"root": filepath.Join(dir, "out"), "report": filepath.Join(dir, "report.txt"), "ignore": []string{"*.tmp"},
	})))

	return a
}

func TestRenderParse_RoundTrip(t *testing.T) {
	a := buildPlan(t, "/work")
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, a, RenderOptions{Target: operation.Linux, Created: created, Self: "/work/prog", RunningProgress: 2}))

	text := buf.String()
	assert.True(t, strings.HasPrefix(text, Shebang+"\n# Creation time: 2025-06-01T12:00:00Z\n"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), "end {\n}"))

	prog, err := Parse(buf.Bytes(), "prog", reg)
	require.NoError(t, err)

	assert.Equal(t, created, prog.Created)
	assert.Equal(t, "/work/prog", prog.Self)
	assert.Equal(t, 6, prog.TotalProgress)
	assert.Equal(t, 2, prog.RunningProgress)
	assert.Equal(t, operation.Linux, prog.Target)

	want, got := a.Compile(operation.Linux), prog.Plan.Compile(operation.Linux)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.True(t, slicesEqual(want[i].Ops, got[i].Ops), want[i].Name)
	}

	var again bytes.Buffer
	require.NoError(t, Render(&again, prog.Plan, RenderOptions{Target: operation.Linux, Created: created, Self: "/work/prog", RunningProgress: 2}))
	assert.Equal(t, text, again.String())
}

func slicesEqual(a, b []operation.Operation) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !operation.Equal(a[i], b[i]) {
			return false
		}
	}

	return true
}

func TestParse_Errors(t *testing.T) {
	const head = "program {\n  total_progress = 0\n}\n"

	cases := map[string]struct {
		src string
		err error
	}{
		"syntax":       {src: "program {", err: ErrProgram},
		"no program":   {src: "end {}\n", err: ErrProgram},
		"truncated":    {src: head + "section \"copy\" {\n}\n", err: ErrTruncated},
		"bad section":  {src: head + "section \"middle\" {\n}\nend {}\n", err: ErrInvalidSection},
		"out of order": {src: head + "section \"post\" {\n}\nsection \"pre\" {\n}\nend {}\n", err: ErrProgram},
		"duplicate":    {src: head + "section \"pre\" {\n}\nsection \"pre\" {\n}\nend {}\n", err: ErrProgram},
		"stray block":  {src: head + "touch {\n path = \"x\"\n}\nend {}\n", err: ErrProgram},
		"top attr":     {src: "x = 1\n" + head + "end {}\n", err: ErrProgram},
		"bad target":   {src: "program {\n target = \"amiga\"\n}\nend {}\n", err: operation.ErrUnknownPlatform},
		"bad op":       {src: head + "section \"pre\" {\n  touch {}\n}\nend {}\n", err: operation.ErrInvalidParams},
		"unknown kind": {src: head + "section \"pre\" {\n  teleport {}\n}\nend {}\n", err: operation.ErrUnknownKind},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "prog", reg)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRun_ExecutesSectionsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := buildPlan(t, dir)

	cfg := config.Default()
	cfg.PollInterval = 20 * time.Millisecond

	ec := operation.NewExecContext(cfg)
	ec.Platform = operation.Linux
	ec.Stdout = &bytes.Buffer{}

	require.NoError(t, Run(context.Background(), a, ec))

	assert.Equal(t, 4, ec.TotalProgress)
	assert.Equal(t, 4, ec.RunningProgress)
	assert.FileExists(t, filepath.Join(dir, "out", "one"))

	two, err := os.ReadFile(filepath.Join(dir, "out", "two"))
	require.NoError(t, err)
	assert.Equal(t, dir+"\n", string(two))

	report, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "total checksum,")

	var summary bytes.Buffer
	require.NoError(t, WriteSummary(&summary, ec))
	assert.Contains(t, summary.String(), "Timing summary")
}

func TestRun_FailureCarriesSectionStage(t *testing.T) {
	dir := t.TempDir()

	a := New()
	require.NoError(t, a.SetCurrentSection("remove"))
	require.NoError(t, a.Add(op(t, "move", map[string]any{"src": filepath.Join(dir, "missing"), "dst": filepath.Join(dir, "b")})))

	ec := operation.NewExecContext(config.Default())
	err := Run(context.Background(), a, ec)
	require.ErrorIs(t, err, os.ErrNotExist)

	var oe *operation.OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, []string{"remove"}, oe.Stages)
	assert.Empty(t, ec.Stages())

	var buf bytes.Buffer
	WriteFailureReport(&buf, err)
	assert.Contains(t, buf.String(), `"exit_code":1`)
	assert.Contains(t, buf.String(), `"kind":"move"`)

	buf.Reset()
	WriteFailureReport(&buf, os.ErrClosed)
	assert.Contains(t, buf.String(), `"error":"file already closed"`)
}

func TestRunProgram_ContinuesProgress(t *testing.T) {
	dir := t.TempDir()

	a := New()
	require.NoError(t, a.SetCurrentSection("pre"))
	require.NoError(t, a.Add(touch(t, filepath.Join(dir, "x"))))

	fs := afero.NewOsFs()
	path := filepath.Join(dir, "sub", "prog.hcl")
	require.NoError(t, WriteFile(fs, path, a, RenderOptions{Target: operation.CurrentPlatform(), RunningProgress: 10}))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode().Perm()&0o100)

	prog, err := ParseFile(fs, path, reg)
	require.NoError(t, err)
	assert.Equal(t, path, prog.Self)

	ec := operation.NewExecContext(config.Default())
	require.NoError(t, RunProgram(context.Background(), prog, ec))
	assert.Equal(t, 11, ec.RunningProgress)
	assert.Equal(t, 11, ec.TotalProgress)
	assert.FileExists(t, filepath.Join(dir, "x"))
}

func TestSpawn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.hcl")

	var stdout, stderr bytes.Buffer

	err := Spawn(context.Background(), config.Default(), "echo", path, &stdout, &stderr, "--no-summary")
	require.NoError(t, err)
	assert.Equal(t, "run -f "+path+" --no-summary\n", stdout.String())
	assert.Empty(t, stderr.String())
}
