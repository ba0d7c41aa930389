// Package store provides the shared storage medium that every agent process
// reads and writes. The medium is a key-addressed record store offering only
// atomic per-key replace; nothing in this module ever needs a cross-record
// transaction. Records are opaque JSON blobs owned by the domain packages.
package store

import (
	"context"
	"strings"

	"agora/internal/protocol"
)

// Store is the pluggable shared medium. Implementations must make Put an
// atomic per-key replace; they are not required to order writes across
// processes. Get returns protocol.ErrNotFound for absent keys; any transport
// or corruption failure is wrapped in protocol.ErrStorage.
type Store interface {
	Put(ctx context.Context, key string, record []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// ValidateKey rejects keys that cannot be represented safely by every
// implementation (the file store maps key segments to path elements).
func ValidateKey(key string) error {
	if key == "" {
		return protocol.Validationf("empty store key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return protocol.Validationf("invalid store key %q", key)
		}
		if strings.ContainsAny(seg, `\:*?"<>|`) {
			return protocol.Validationf("invalid store key %q", key)
		}
	}
	return nil
}
