package db

import (
	"context"
	"time"
)

// Store is the database facade used by the composition root.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
	// LoadScripts caches server-side scripts and fails when scripting is unavailable.
	LoadScripts(ctx context.Context) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash operations guarded by a revision field.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	CompareAndSetHash(ctx context.Context, req CASRequest) (CASResult, error)
}

// CASRequest writes Fields into the hash at Key only when GuardField currently
// equals Expected. A missing key or field reads as "0", so Expected "0" creates.
type CASRequest struct {
	Key        string
	GuardField string
	Expected   string
	Fields     map[string]string
	// TTL is applied on every successful write. Zero keeps the key persistent.
	TTL time.Duration
}

// CASResult reports whether the write happened and the guard value seen by the server.
type CASResult struct {
	Swapped bool
	Current string
}
