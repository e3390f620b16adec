// Package chain is the Keep ledger surface: the on-chain record of who may
// open which envelope and when.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrKeepNotFound    = errors.New("keep not found")
	ErrNotAuthorized   = errors.New("caller not authorized for this keep")
	ErrInvalidStatus   = errors.New("keep is not active")
	ErrTooEarly        = errors.New("keep cannot be claimed yet")
	ErrInsufficientFee = errors.New("insufficient platform fee")
)

// Status transitions are monotonic: Active moves to exactly one of the other
// states and never back.
type Status uint8

const (
	StatusActive Status = iota
	StatusClaimed
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusClaimed:
		return "Claimed"
	case StatusCancelled:
		return "Cancelled"
	case StatusExpired:
		return "Expired"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

type Keep struct {
	ID             uint64
	Creator        common.Address
	Recipient      common.Address
	Fallback       common.Address // zero address means no fallback
	ContentAddress string
	UnlockTime     time.Time
	CreatedAt      time.Time
	Status         Status
	// ClaimedBy is the recipient or fallback that took the keep.
	ClaimedBy   common.Address
	Type        string
	Title       string
	Description string
}

func (k *Keep) HasFallback() bool {
	return k.Fallback != (common.Address{})
}

// Config is read from the registry rather than hardcoded.
type Config struct {
	MinUnlockDelay time.Duration
	MaxUnlockDelay time.Duration
	ClaimWindow    time.Duration
	PlatformFee    *big.Int
}

// CheckUnlockTime reports whether unlock lies within [min, max] of now at
// one-second granularity. Both bounds are inclusive. The registry applies it
// with its own clock when the keep is written, so an unlock at exactly the
// minimum only holds if the write lands in the second it was checked.
func (c Config) CheckUnlockTime(now, unlock time.Time) bool {
	delay := unlock.Unix() - now.Unix()
	return delay >= int64(c.MinUnlockDelay/time.Second) && delay <= int64(c.MaxUnlockDelay/time.Second)
}

type CreateRequest struct {
	Recipient      common.Address
	Fallback       common.Address
	ContentAddress string
	UnlockTime     time.Time
	Type           string
	Title          string
	Description    string
}

type EventKind string

const (
	EventCreated           EventKind = "KeepCreated"
	EventClaimed           EventKind = "KeepClaimed"
	EventCancelled         EventKind = "KeepCancelled"
	EventFallbackActivated EventKind = "FallbackActivated"
	EventRecipientChanged  EventKind = "RecipientChanged"
)

type Event struct {
	Kind      EventKind
	KeepID    uint64
	Actor     common.Address
	Recipient common.Address
	At        time.Time
}

// Registry is implemented by the in-process ledger and by the contract
// binding. Write methods act on behalf of from/caller.
type Registry interface {
	Config(ctx context.Context) (Config, error)
	CreateKeep(ctx context.Context, from common.Address, req CreateRequest, fee *big.Int) (uint64, error)
	ClaimKeep(ctx context.Context, caller common.Address, id uint64) error
	CancelKeep(ctx context.Context, caller common.Address, id uint64) error
	ChangeRecipient(ctx context.Context, caller common.Address, id uint64, newRecipient common.Address) error
	ActivateFallback(ctx context.Context, caller common.Address, id uint64) error
	GetKeep(ctx context.Context, id uint64) (*Keep, error)
	FindByContentAddress(ctx context.Context, contentAddress string) (*Keep, error)
	ListKeeps(ctx context.Context) ([]*Keep, error)
	Events(ctx context.Context, id uint64) ([]Event, error)
}
