package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	boxochunker "github.com/ipfs/boxo/chunker"
)

const (
	// ChunkSize is the block size used when splitting uploads.
	ChunkSize = 256 * 1024

	blockPrefix    = "blk/"
	manifestPrefix = "man/"
)

type manifest struct {
	Blocks    []string          `json:"blocks"`
	Size      int64             `json:"size"`
	Name      string            `json:"name"`
	Tags      map[string]string `json:"tags"`
	CreatedAt time.Time         `json:"createdAt"`
}

// BadgerStore is a local content-addressed store. Uploads are split into
// fixed-size blocks stored under their sha256, so identical blocks across
// envelopes are written once. A manifest under the content address lists
// the blocks in order.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerStore opens (or creates) a store at dir. An empty dir opens an
// in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	addr, err := ComputeAddress(data)
	if err != nil {
		return "", err
	}

	m := manifest{
		Size:      int64(len(data)),
		Name:      meta.Name,
		Tags:      copyTags(meta.Tags),
		CreatedAt: s.now().UTC(),
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	splitter := boxochunker.NewSizeSplitter(bytes.NewReader(data), ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := splitter.NextBytes()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("chunk: %w", err)
		}

		sum := sha256.Sum256(chunk)
		h := hex.EncodeToString(sum[:])
		if err := wb.Set([]byte(blockPrefix+h), chunk); err != nil {
			return "", fmt.Errorf("write block: %w", err)
		}
		m.Blocks = append(m.Blocks, h)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	if err := wb.Set([]byte(manifestPrefix+addr), raw); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return "", fmt.Errorf("flush: %w", err)
	}
	return addr, nil
}

func (s *BadgerStore) Download(ctx context.Context, address string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := readManifest(txn, address)
		if err != nil {
			return err
		}

		out = make([]byte, 0, m.Size)
		for _, h := range m.Blocks {
			item, err := txn.Get([]byte(blockPrefix + h))
			if err != nil {
				return fmt.Errorf("block %s: %w", h, err)
			}
			err = item.Value(func(val []byte) error {
				out = append(out, val...)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := Verify(address, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readManifest(txn *badger.Txn, address string) (*manifest, error) {
	item, err := txn.Get([]byte(manifestPrefix + address))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var m manifest
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", address, err)
	}
	return &m, nil
}

func (s *BadgerStore) List(ctx context.Context, filter Filter) ([]Pin, error) {
	var out []Pin
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(manifestPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var m manifest
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
				return err
			}
			if !filter.Match(m.Tags) {
				continue
			}
			out = append(out, Pin{
				Address:   string(item.Key()[len(manifestPrefix):]),
				Name:      m.Name,
				Tags:      m.Tags,
				Size:      m.Size,
				CreatedAt: m.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}
