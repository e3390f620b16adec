package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	pin  Pin
}

// MemoryStore keeps blobs in a map. It is used by tests and by the
// all-in-memory dev setup.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), now: time.Now}
}

func (s *MemoryStore) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := ComputeAddress(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[addr]; !ok {
		s.objects[addr] = memoryObject{
			data: append([]byte(nil), data...),
			pin: Pin{
				Address:   addr,
				Name:      meta.Name,
				Tags:      copyTags(meta.Tags),
				Size:      int64(len(data)),
				CreatedAt: s.now(),
			},
		}
	}
	return addr, nil
}

func (s *MemoryStore) Download(ctx context.Context, address string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[address]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Pin
	for _, obj := range s.objects {
		if filter.Match(obj.pin.Tags) {
			p := obj.pin
			p.Tags = copyTags(p.Tags)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// Put overwrites the bytes stored under address without rehashing. Tests use
// it to simulate a corrupted or tampered gateway.
func (s *MemoryStore) Put(address string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.objects[address]
	obj.data = append([]byte(nil), data...)
	obj.pin.Address = address
	s.objects[address] = obj
}
