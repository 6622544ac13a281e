// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package store provides the public API for the SQLite-backed record store
// the engine uses to catalog adapter checkpoints.
package store

import (
	"github.com/weft-ml/weft/internal/store"
)

// ErrNotFound is returned when no record exists under the requested id.
var ErrNotFound = store.ErrNotFound

// Item is anything the store can persist.
type Item = store.Item

// PaginatedResults is one page of a List or Search call.
type PaginatedResults[T Item] = store.PaginatedResults[T]

// SQLiteStore persists items of one type in one SQLite table.
type SQLiteStore[T Item] = store.SQLiteStore[T]

// Open opens (or creates) the database at path and ensures the table for
// this store exists.
func Open[T Item](path, table string) (*SQLiteStore[T], error) {
	return store.Open[T](path, table)
}

// AdapterRecord is the catalog entry for an adapter checkpoint.
type AdapterRecord = store.AdapterRecord

// NewAdapterRecord creates a record with a fresh id and creation timestamp.
func NewAdapterRecord(name, path string) AdapterRecord {
	return store.NewAdapterRecord(name, path)
}
