// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NewAppliesDefaults(t *testing.T) {
	f := newFixture()

	op, err := f.reg.New("record", map[string]any{"name": "a"})
	require.NoError(t, err)

	assert.Equal(t, Params{
		"name":            "a",
		"path":            "",
		"count":           int64(3),
		"loud":            false,
		"tags":            []string{},
		ParamIgnoreErrors: []string{},
		ParamEssential:    true,
	}, op.Params())
	assert.True(t, op.Essential())
	assert.Equal(t, 1, op.OwnProgressCount())
	assert.Equal(t, AllPlatforms, op.Platforms())
	assert.Equal(t, "record a", op.ProgressMessage())
}

func TestRegistry_NewValidation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		kind string
		raw  map[string]any
	}{
		{name: "unknown parameter", kind: "record", raw: map[string]any{"name": "a", "colour": "red"}},
		{name: "missing required", kind: "record", raw: map[string]any{}},
		{name: "wrong type", kind: "record", raw: map[string]any{"name": 1}},
		{name: "wrong list element", kind: "record", raw: map[string]any{"name": "a", "tags": []any{"x", 2}}},
		{name: "negative count", kind: "record", raw: map[string]any{"name": "a", "count": -1}},
		{name: "bad ignore kind", kind: "record", raw: map[string]any{"name": "a", ParamIgnoreErrors: []string{"whatever"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.reg.New(tc.kind, tc.raw)
			require.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	_, err := f.reg.New("nope", nil)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegistry_Register(t *testing.T) {
	f := newFixture()

	err := f.reg.Register(Definition{Kind: "record", New: func(b Base) (Operation, error) { return nil, nil }})
	require.ErrorIs(t, err, ErrDuplicateKind)

	err = f.reg.Register(Definition{Kind: "nothing"})
	require.ErrorIs(t, err, ErrInvalidParams)

	assert.Equal(t, []string{"group", "note", "record", "windows_only"}, f.reg.Kinds())
}

func TestRegistry_RegisterZeroDefaults(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Definition{
		Kind: "plain",
		Params: []ParamSpec{
			{Name: "s", Type: TypeString},
			{Name: "b", Type: TypeBool},
			{Name: "n", Type: TypeInt},
			{Name: "l", Type: TypeStringList},
		},
		New: func(b Base) (Operation, error) { return &record{Base: b, log: new([]string)}, nil },
	})

	def, ok := reg.Lookup("plain")
	require.True(t, ok)

	defaults := make(map[string]any, len(def.Params))
	for _, s := range def.Params {
		defaults[s.Name] = s.Default
	}

	assert.Equal(t, map[string]any{"s": "", "b": false, "n": int64(0), "l": []string{}}, defaults)

	p := reg.MustNew("plain", nil).Params()
	assert.Equal(t, false, p["b"])
	assert.Equal(t, int64(0), p["n"])

	err := reg.Register(Definition{
		Kind:   "odd",
		Params: []ParamSpec{{Name: "x", Type: ParamType(99)}},
		New:    func(b Base) (Operation, error) { return nil, nil },
	})
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestOperation_ProgressCounts(t *testing.T) {
	f := newFixture()

	note := f.reg.MustNew("note", map[string]any{"text": "hi"})
	assert.Equal(t, 0, note.OwnProgressCount())
	assert.False(t, note.Essential())

	g := f.group("outer", f.rec("a"), note, f.group("inner", f.rec("b"), f.rec("c")))
	assert.Equal(t, 0, g.OwnProgressCount())
	assert.Equal(t, 3, ProgressCount(g))
}

func TestWithChildren_LeavesOriginalAlone(t *testing.T) {
	f := newFixture()

	g := f.group("g", f.rec("a"), f.rec("b"))

	ng, err := WithChildren(g, []Operation{f.rec("c")})
	require.NoError(t, err)

	assert.Len(t, g.Children(), 2)
	require.Len(t, ng.Children(), 1)
	assert.Equal(t, "c", ng.Children()[0].Params().String("name"))
	assert.Equal(t, g.Params(), ng.Params())
}

func TestEqual(t *testing.T) {
	f := newFixture()

	assert.True(t, Equal(f.rec("a"), f.rec("a")))
	assert.False(t, Equal(f.rec("a"), f.rec("b")))
	assert.False(t, Equal(f.rec("a"), f.rec("a", "loud", true)))
	assert.True(t, Equal(f.group("g", f.rec("a")), f.group("g", f.rec("a"))))
	assert.False(t, Equal(f.group("g", f.rec("a")), f.group("g", f.rec("a"), f.rec("b"))))
	assert.False(t, Equal(f.group("a"), f.rec("a")))
}
