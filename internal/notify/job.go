// Package notify hands "your Keep is available" requests to the external
// mail service. Job bookkeeping only prevents duplicate sends; it can be
// rebuilt at any time by rescanning the ledger.
package notify

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrJobNotFound = errors.New("notification job not found")

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobSent    JobStatus = "sent"
	JobFailed  JobStatus = "failed"
)

type Job struct {
	ID             string    `json:"id"`
	KeepID         uint64    `json:"keepId"`
	ContentAddress string    `json:"contentAddress"`
	Recipient      string    `json:"recipient"`
	Role           string    `json:"role"`
	Email          string    `json:"email"`
	Status         JobStatus `json:"status"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"lastError,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// JobID is contentAddress:recipient, lowercased so it does not depend on
// address checksum casing.
func JobID(contentAddress string, recipient ethcommon.Address) string {
	return contentAddress + ":" + strings.ToLower(recipient.Hex())
}

// JobStore persists jobs by ID. Get returns ErrJobNotFound when absent.
type JobStore interface {
	Get(ctx context.Context, id string) (*Job, error)
	Put(ctx context.Context, job *Job) error
	List(ctx context.Context) ([]*Job, error)
}

type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]Job)}
}

func (m *MemoryJobStore) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

func (m *MemoryJobStore) Put(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryJobStore) List(ctx context.Context) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}
