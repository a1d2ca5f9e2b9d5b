// Package store provides key-value storage implementations for persisted theme choices.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found in the store.
var ErrNotFound = errors.New("key not found")

// Choice is a persisted row of the kv table, typically a client's theme choice.
type Choice struct {
	Key       string    `db:"key" json:"key"`
	Value     []byte    `db:"value" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Theme returns the stored value as text.
func (c Choice) Theme() string { return string(c.Value) }

// DBType identifies the database backend.
type DBType int

// supported database backends
const (
	DBTypeSQLite DBType = iota
	DBTypePostgres
)

// RWLocker is the locking discipline used by Store.
// SQLite gets a real mutex (single writer), PostgreSQL handles concurrency itself.
type RWLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type noopLocker struct{}

func (noopLocker) Lock() {}
func (noopLocker) Unlock() {}
func (noopLocker) RLock() {}
func (noopLocker) RUnlock() {}
