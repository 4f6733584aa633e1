// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across salsa: entity
// identities, revisions, dependency keys, errors and logging.
//
// # Revisions
//
// A [Revision] names an epoch of the database. The current revision is held
// by a [Clock] owned by the database; it is only advanced during an exclusive
// phase, so every computation observes a single revision for its whole
// duration.
//
// # Identities
//
// An [Id] names one entity within a store. Ids are issued by an
// [IdAllocator] and are never reissued by the same allocator, so a stale Id
// held by a caller can never alias a newer entity.
package base
