package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Cache keeps solved responses so repeated requests skip the solver.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// Key hashes a request kind and its parts. JSON parts are compacted first so
// formatting does not change the key.
func Key(kind string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, p := range parts {
		h.Write([]byte{0})
		var buf bytes.Buffer
		if json.Valid(p) && json.Compact(&buf, p) == nil {
			h.Write(buf.Bytes())
		} else {
			h.Write(p)
		}
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
