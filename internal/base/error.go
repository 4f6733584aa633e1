// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// The errors below are markers. Every error returned for an invariant
// violation is an assertion failure (errors.HasAssertionFailure reports true)
// carrying one of these marks, so callers can tell violations apart with
// errors.Is. None of them is retryable.
var (
	// ErrDuplicateIdentity means an entity was inserted under an Id that is
	// already present in the store.
	ErrDuplicateIdentity = errors.New("salsa: duplicate identity")
	// ErrUnknownIdentity means an operation named an Id that is not present
	// in the store.
	ErrUnknownIdentity = errors.New("salsa: unknown identity")
	// ErrDoubleUpdate means a tracked entity was updated twice in the same
	// revision.
	ErrDoubleUpdate = errors.New("salsa: double update")
	// ErrPhaseClosed means a computation or writer token was used after the
	// phase that issued it ended.
	ErrPhaseClosed = errors.New("salsa: phase closed")
	// ErrSealed means a store was registered after the routing table became
	// read-only.
	ErrSealed = errors.New("salsa: routes sealed")
	// ErrInvalidField means a field index or field declaration is invalid.
	ErrInvalidField = errors.New("salsa: invalid field")
)

// ErrClosed is returned when an operation is performed on a closed database.
// It is not an assertion failure.
var ErrClosed = errors.New("salsa: closed")

// AssertionErrorf returns an assertion failure marked with mark.
func AssertionErrorf(mark error, format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedWithDepthf(1, format, args...), mark)
}

// UnknownIdentityError returns an ErrUnknownIdentity error for id in the named
// store.
func UnknownIdentityError(store string, id Id) error {
	return errors.Mark(
		errors.AssertionFailedWithDepthf(1, "%s: unknown identity %s", errors.Safe(store), id),
		ErrUnknownIdentity)
}
