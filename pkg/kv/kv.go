// Package kv is the short-lived key/value storage behind the match cache,
// the token blacklist and interview sessions. Entries always carry a TTL.
package kv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("kv: key not found")

// Store holds byte values under string keys with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key joins parts with ':' into a namespaced key, e.g. Key("blacklist", jti).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey returns a hex SHA-256 of key. Backends with a restricted key
// alphabet store hashed keys.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
