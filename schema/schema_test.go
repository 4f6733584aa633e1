// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package schema

import (
	"testing"

	"github.com/OLUWAMUYIWA/salsa/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type item struct {
	Pkg   string
	Name  string
	Arity uint64
	Body  []string
	Doc   string
}

func itemSchema() *Schema[item] {
	return New("item",
		IDString("pkg", func(i *item) string { return i.Pkg }),
		IDString("name", func(i *item) string { return i.Name }),
		Value("arity", func(i *item) uint64 { return i.Arity }),
		ValueFunc("body", func(i *item) []string { return i.Body }, func(a, b []string) bool {
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		}),
		NoEq[item]("doc"),
	)
}

func TestSchemaFields(t *testing.T) {
	s := itemSchema()
	require.Equal(t, "item", s.Name())
	require.Equal(t, 5, s.NumFields())
	require.Equal(t, 2, s.NumIdentityFields())
	require.Equal(t, 3, s.NumValueFields())

	// Value fields are indexed in declaration order, skipping identity fields.
	require.Equal(t, "arity", s.ValueField(0).Name)
	require.Equal(t, "body", s.ValueField(1).Name)
	require.Equal(t, "doc", s.ValueField(2).Name)
	require.True(t, s.ValueField(0).Backdates())
	require.True(t, s.ValueField(1).Backdates())
	require.False(t, s.ValueField(2).Backdates())

	require.NoError(t, s.CheckValueField(0))
	require.NoError(t, s.CheckValueField(2))
	for _, i := range []int{-1, 3} {
		err := s.CheckValueField(i)
		require.True(t, errors.Is(err, base.ErrInvalidField))
		require.True(t, errors.HasAssertionFailure(err))
	}
}

func TestSchemaEqual(t *testing.T) {
	s := itemSchema()
	a := item{Arity: 1, Body: []string{"x"}, Doc: "d"}
	b := a
	b.Body = []string{"x"}
	require.True(t, s.ValueField(0).Equal(&a, &b))
	require.True(t, s.ValueField(1).Equal(&a, &b))
	b.Body = append(b.Body, "y")
	require.False(t, s.ValueField(1).Equal(&a, &b))
	b.Arity = 2
	require.False(t, s.ValueField(0).Equal(&a, &b))
}

func TestIdentityKey(t *testing.T) {
	s := itemSchema()
	key := func(pkg, name string) string {
		return string(s.IdentityKey(nil, &item{Pkg: pkg, Name: name, Arity: 7}))
	}
	require.Equal(t, key("a", "b"), key("a", "b"))
	// Value fields do not contribute to the key.
	require.Equal(t, key("a", "b"), string(s.IdentityKey(nil, &item{Pkg: "a", Name: "b", Arity: 8})))
	// The encoding is self-delimiting, so shifting bytes between fields
	// changes the key.
	require.NotEqual(t, key("ab", ""), key("a", "b"))
	require.NotEqual(t, key("", "ab"), key("a", "b"))

	prefix := []byte("prefix")
	require.Equal(t, "prefix"+key("a", "b"), string(s.IdentityKey(prefix, &item{Pkg: "a", Name: "b"})))
}

func TestKeyEncodings(t *testing.T) {
	require.Equal(t, []byte{3, 'f', 'o', 'o'}, AppendString(nil, "foo"))
	require.Equal(t, []byte{0}, AppendString(nil, ""))
	require.Equal(t, []byte{2, 1, 2}, AppendBytes(nil, []byte{1, 2}))
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 2}, AppendUint64(nil, 258))
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, AppendInt64(nil, -1))
	require.Equal(t, []byte{1, 0}, AppendBool(AppendBool(nil, true), false))
}

func TestValidate(t *testing.T) {
	type rec struct {
		K string
		V int
	}
	key := IDString("k", func(r *rec) string { return r.K })
	val := Value("v", func(r *rec) int { return r.V })

	testCases := []struct {
		name   string
		schema *Schema[rec]
		kind   Kind
		err    string
	}{
		{"tracked", New("rec", key, val), KindTracked, ""},
		{"input", New("rec", val, NoEq[rec]("w")), KindInput, ""},
		{"input without equality", New("rec", Field[rec]{Name: "v"}), KindInput, ""},
		{"no name", New[rec]("", val), KindTracked, "schema has no name"},
		{"unnamed field", New("rec", Field[rec]{NoEq: true}), KindTracked, "rec: field 0 has no name"},
		{"duplicate field", New("rec", val, val), KindTracked, "rec: duplicate field v"},
		{"input identity", New("rec", key, val), KindInput,
			"rec.k: identity fields cannot be used with input entities"},
		{"identity without key", New("rec", Field[rec]{Name: "k", ID: true}), KindTracked,
			"rec.k: identity field has no key encoding"},
		{"tracked without identity", New("rec", val), KindTracked,
			"rec: tracked entities need at least one identity field"},
		{"value without equality", New("rec", key, Field[rec]{Name: "v"}), KindTracked,
			"rec.v: value field must declare Equal or NoEq"},
		{"equality and noeq", New("rec", key, Field[rec]{Name: "v", NoEq: true, Equal: val.Equal}), KindTracked,
			"rec.v: field declares both Equal and NoEq"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.schema.Validate(tc.kind)
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, base.ErrInvalidField))
			require.Equal(t, tc.err, err.Error())
		})
	}
}
