// Package storage publishes envelopes to content-addressed storage and reads
// them back by address.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotFound        = errors.New("content not found")
	ErrAddressMismatch = errors.New("content does not match its address")
)

// Metadata tag keys used to discover keeps relevant to an address.
const (
	TagCreator   = "keepr:creator"
	TagRecipient = "keepr:recipient"
	TagFallback  = "keepr:fallback"
	TagType      = "keepr:type"
)

type Metadata struct {
	Name string
	Tags map[string]string
}

// Filter matches a pin when any of its entries equals the pin's tag of the
// same key. An empty filter matches everything.
type Filter struct {
	Any map[string]string
}

func (f Filter) Match(tags map[string]string) bool {
	if len(f.Any) == 0 {
		return true
	}
	for k, v := range f.Any {
		if got, ok := tags[k]; ok && got == v {
			return true
		}
	}
	return false
}

type Pin struct {
	Address   string
	Name      string
	Tags      map[string]string
	Size      int64
	CreatedAt time.Time
}

// Store is a content-addressed blob store.
type Store interface {
	Upload(ctx context.Context, data []byte, meta Metadata) (string, error)
	Download(ctx context.Context, address string) ([]byte, error)
	List(ctx context.Context, filter Filter) ([]Pin, error)
}

// ComputeAddress returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeAddress(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// Verify checks that data hashes to address using the address's own prefix.
func Verify(address string, data []byte) error {
	c, err := cid.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressMismatch, err)
	}
	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressMismatch, err)
	}
	if !sum.Equals(c) {
		return ErrAddressMismatch
	}
	return nil
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
