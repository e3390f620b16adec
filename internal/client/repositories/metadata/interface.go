// Package metadata stores small local settings of the client: the cache
// passphrase salt and verifier, and the address of the last connected wallet.
package metadata

import (
	"context"
)

// Repository is a byte-valued key/value table. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
