// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package schema

// ID returns an identity field whose value is read by get and encoded by enc.
// enc must produce a self-delimiting encoding, like the Append* functions in
// this package.
func ID[F any, T any](name string, get func(*F) T, enc func([]byte, T) []byte) Field[F] {
	return Field[F]{
		Name: name,
		ID:   true,
		AppendKey: func(dst []byte, f *F) []byte {
			return enc(dst, get(f))
		},
	}
}

// IDString returns a string identity field.
func IDString[F any](name string, get func(*F) string) Field[F] {
	return ID(name, get, AppendString)
}

// IDUint64 returns an unsigned integer identity field.
func IDUint64[F any](name string, get func(*F) uint64) Field[F] {
	return ID(name, get, AppendUint64)
}

// IDInt64 returns a signed integer identity field.
func IDInt64[F any](name string, get func(*F) int64) Field[F] {
	return ID(name, get, AppendInt64)
}

// Value returns a backdated value field compared with ==.
func Value[F any, T comparable](name string, get func(*F) T) Field[F] {
	return Field[F]{
		Name: name,
		Equal: func(a, b *F) bool {
			return get(a) == get(b)
		},
	}
}

// ValueFunc returns a backdated value field compared with eq.
func ValueFunc[F any, T any](name string, get func(*F) T, eq func(a, b T) bool) Field[F] {
	return Field[F]{
		Name: name,
		Equal: func(a, b *F) bool {
			return eq(get(a), get(b))
		},
	}
}

// NoEq returns a value field that is never backdated: every update stamps it
// with the current revision.
func NoEq[F any](name string) Field[F] {
	return Field[F]{Name: name, NoEq: true}
}
