// Package cache implements the optional result cache (C4): a local LRU
// backend and a distributed KV backend sharing the same contract, plus a
// single-flight lock so only one worker computes a given key at a time.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Backend is the contract shared by the local LRU and distributed KV
// implementations.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Key namespaces a cache entry by scan kind and a hash of the scanned text,
// per spec.md §4.3.
func Key(scanKind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s", scanKind, hex.EncodeToString(sum[:]))
}
