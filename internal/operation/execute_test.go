// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/matt-FFFFFF/stevedore/internal/progress"
	"github.com/matt-FFFFFF/stevedore/internal/runbatch"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	events []progress.Event
}

func (c *collector) Report(e progress.Event) { c.events = append(c.events, e) }
func (c *collector) Close()                  {}

func (c *collector) types() []progress.EventType {
	out := make([]progress.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}

	return out
}

type blocker struct {
	Base
}

func (b *blocker) Invoke(ctx context.Context, _ *ExecContext) error {
	<-ctx.Done()
	return context.Cause(ctx)
}

func TestExecute_OrderAndProgress(t *testing.T) {
	f := newFixture()
	ec := testExecContext("/work")
	c := &collector{}
	ec.Reporter = c

	op := f.group("outer", f.rec("a"), f.group("inner", f.rec("b")), f.rec("c"))
	ec.TotalProgress = ProgressCount(op)

	require.NoError(t, Execute(context.Background(), ec, op))

	assert.Equal(t, []string{"enter outer", "a", "enter inner", "b", "exit inner", "c", "exit outer"}, f.log)
	assert.Equal(t, 3, ec.RunningProgress)
	assert.Equal(t, 3, ec.TotalProgress)
	assert.Len(t, ec.Timings, 5)
	assert.Empty(t, ec.Stages())
	assert.Equal(t, "/work", ec.Cwd())

	require.Len(t, c.events, 10)
	assert.Equal(t, progress.EventStarted, c.events[0].Type)
	assert.Equal(t, progress.EventCompleted, c.events[9].Type)
	assert.Equal(t, 1, c.events[1].Number)
	assert.Equal(t, []string{"group outer"}, c.events[1].Stages)
	assert.Equal(t, 3, c.events[9].Running)
}

func TestExecute_FailureContext(t *testing.T) {
	f := newFixture()
	f.errs["b"] = errors.New("boom")

	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/work/outer/inner", 0o755))
	require.NoError(t, afero.WriteFile(mem, "/work/outer/inner/file", []byte("x"), 0o640))

	stubs := gostub.Stub(&FS, mem)
	defer stubs.Reset()

	ec := testExecContext("/work")
	op := f.group("outer", f.rec("a"), f.group("inner", f.rec("b", "path", "file")), f.rec("c"))

	err := Execute(context.Background(), ec, op)
	require.Error(t, err)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "record", oe.Kind)
	assert.Equal(t, 2, oe.Progress)
	assert.Equal(t, "recording b", oe.LastStep)
	assert.Equal(t, []string{"group outer", "group inner"}, oe.Stages)
	assert.Equal(t, []string{"group inner", "group outer"}, oe.Scopes)
	require.Len(t, oe.Paths, 1)
	assert.Equal(t, PathInfo{Param: "path", Path: "/work/outer/inner/file", Exists: true, Mode: 0o640}, oe.Paths[0])
	assert.Contains(t, err.Error(), "record b failed (progress 2) while recording b: boom")

	assert.Equal(t, []string{"enter outer", "a", "enter inner", "b", "exit inner", "exit outer"}, f.log)
	assert.Empty(t, ec.Stages())

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Error("failed", "error", oe)
	assert.Contains(t, buf.String(), `"last_step":"recording b"`)
	assert.Contains(t, buf.String(), `"mode":"-rw-r-----"`)
}

func TestExecute_IgnoreErrors(t *testing.T) {
	f := newFixture()
	f.errs["a"] = errMissing
	f.errs["b"] = errors.New("boom")

	ec := testExecContext("/work")
	c := &collector{}
	ec.Reporter = c

	op := f.group("outer", f.rec("a", ParamIgnoreErrors, []string{"not_found"}), f.rec("c"))
	require.NoError(t, Execute(context.Background(), ec, op))
	assert.Equal(t, []string{"enter outer", "a", "c", "exit outer"}, f.log)
	assert.NotContains(t, c.types(), progress.EventFailed)

	// A scope can absorb the failure of its children.
	f.log = nil
	g := f.reg.MustNew("group", map[string]any{"name": "lenient", ParamIgnoreErrors: []string{"any"}}).(Scope)
	g.Append(f.rec("b"), f.rec("c"))
	require.NoError(t, Execute(context.Background(), ec, g))
	assert.Equal(t, []string{"enter lenient", "b", "exit lenient"}, f.log)

	// Unmatched kinds still fail.
	f.log = nil
	err := Execute(context.Background(), ec, f.rec("b", ParamIgnoreErrors, []string{"not_found"}))
	require.Error(t, err)
}

func TestExecute_EnterFailureSkipsExit(t *testing.T) {
	f := newFixture()
	ec := testExecContext("/work")

	err := Execute(context.Background(), ec, f.group("bad-enter", f.rec("a")))
	require.ErrorContains(t, err, "cannot enter")
	assert.Equal(t, []string{"enter bad-enter"}, f.log)
	assert.Empty(t, ec.Stages())
}

func TestExecute_PlatformSkip(t *testing.T) {
	f := newFixture()
	ec := testExecContext("/work")
	c := &collector{}
	ec.Reporter = c

	op := f.reg.MustNew("windows_only", map[string]any{"name": "w"})
	require.NoError(t, Execute(context.Background(), ec, op))
	assert.Empty(t, f.log)
	assert.Equal(t, 0, ec.RunningProgress)
	assert.Equal(t, []progress.EventType{progress.EventSkipped}, c.types())

	ec.Platform = Windows
	require.NoError(t, Execute(context.Background(), ec, op))
	assert.Equal(t, []string{"w"}, f.log)
}

func TestExecute_CancelledContext(t *testing.T) {
	f := newFixture()
	ec := testExecContext("/work")

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(runbatch.ErrAborted)

	err := Execute(ctx, ec, f.rec("a", ParamIgnoreErrors, []string{"any"}))
	require.ErrorIs(t, err, runbatch.ErrAborted)
	assert.Empty(t, f.log)
}

func TestExecute_UnitTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Definition{
		Kind: "block",
		New:  func(b Base) (Operation, error) { return &blocker{Base: b}, nil },
	})

	ec := testExecContext("/work")
	ec.Config.UnitTimeout = 20 * time.Millisecond

	err := Execute(context.Background(), ec, reg.MustNew("block", nil))
	require.ErrorIs(t, err, runbatch.ErrTimeoutExceeded)
	assert.Equal(t, runbatch.ExitFailure, runbatch.ExitCodeFor(err))
}

func TestExecute_UnitTimeoutKeepsIgnoreErrors(t *testing.T) {
	f := newFixture()
	f.errs["a"] = errMissing

	ec := testExecContext("/work")
	ec.Config.UnitTimeout = time.Hour

	require.NoError(t, Execute(context.Background(), ec, f.rec("a", ParamIgnoreErrors, []string{"not_found"})))
	assert.Equal(t, []string{"a"}, f.log)

	err := Execute(context.Background(), ec, f.group("outer", f.rec("a"), f.rec("c")))
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, []string{"a", "enter outer", "a", "exit outer"}, f.log)
}

func TestExecute_TimingNumbers(t *testing.T) {
	f := newFixture()
	ec := testExecContext("/work")

	note := f.reg.MustNew("note", map[string]any{"text": "hello"})
	op := f.group("outer", f.rec("a"), note, f.group("inner", f.rec("b")))
	require.NoError(t, Execute(context.Background(), ec, op))

	require.Len(t, ec.Timings, 5)

	numbers := make([]int, 0, len(ec.Timings))
	scopes := make([]bool, 0, len(ec.Timings))

	for _, tm := range ec.Timings {
		numbers = append(numbers, tm.Number)
		scopes = append(scopes, tm.Scope)
	}

	assert.Equal(t, []int{1, 0, 2, 0, 0}, numbers)
	assert.Equal(t, []bool{false, false, false, true, true}, scopes)
}

func TestWriteTimingSummary(t *testing.T) {
	timings := []Timing{
		{Number: 1, Message: "fast", Elapsed: time.Millisecond},
		{Number: 2, Message: "slow", Elapsed: 2 * time.Second},
		{Number: 0, Message: "scope", Elapsed: 3 * time.Second, Scope: true},
		{Number: 3, Message: "medium", Elapsed: time.Second},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTimingSummary(&buf, timings, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timing summary (4 operations, 3.001s):", lines[0])
	assert.Equal(t, "          3s  scope  scope", lines[1])
	assert.Equal(t, "          2s  #2     slow", lines[2])

	buf.Reset()
	require.NoError(t, WriteTimingSummary(&buf, []Timing{{Message: "note", Elapsed: time.Second}}, 0))
	assert.Contains(t, buf.String(), "          1s  -      note\n")
}
