package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-process registry that enforces the same rules as the
// deployed contract. It backs local development and tests.
type MemoryLedger struct {
	mu     sync.RWMutex
	cfg    Config
	now    func() time.Time
	nextID uint64
	keeps  map[uint64]*Keep
	events []Event
}

func NewMemoryLedger(cfg Config, now func() time.Time) *MemoryLedger {
	if now == nil {
		now = time.Now
	}
	if cfg.PlatformFee == nil {
		cfg.PlatformFee = new(big.Int)
	}
	return &MemoryLedger{
		cfg:    cfg,
		now:    now,
		nextID: 1,
		keeps:  make(map[uint64]*Keep),
	}
}

func (l *MemoryLedger) Config(ctx context.Context) (Config, error) {
	cfg := l.cfg
	cfg.PlatformFee = new(big.Int).Set(l.cfg.PlatformFee)
	return cfg, nil
}

func (l *MemoryLedger) CreateKeep(ctx context.Context, from ethcommon.Address, req CreateRequest, fee *big.Int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if fee == nil || fee.Cmp(l.cfg.PlatformFee) < 0 {
		return 0, ErrInsufficientFee
	}

	zero := ethcommon.Address{}
	if req.Recipient == zero || req.Recipient == from {
		return 0, common.ErrInvalidRecipientAddress
	}
	if req.Fallback != zero && (req.Fallback == from || req.Fallback == req.Recipient) {
		return 0, common.ErrInvalidRecipientAddress
	}
	if req.ContentAddress == "" {
		return 0, fmt.Errorf("empty content address")
	}

	now := l.now()
	if !l.cfg.CheckUnlockTime(now, req.UnlockTime) {
		return 0, common.ErrUnlockTimeOutOfRange
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.keeps[id] = &Keep{
		ID:             id,
		Creator:        from,
		Recipient:      req.Recipient,
		Fallback:       req.Fallback,
		ContentAddress: req.ContentAddress,
		UnlockTime:     req.UnlockTime.Truncate(time.Second),
		CreatedAt:      now.Truncate(time.Second),
		Status:         StatusActive,
		Type:           req.Type,
		Title:          req.Title,
		Description:    req.Description,
	}
	l.emit(EventCreated, id, from, req.Recipient, now)
	return id, nil
}

func (l *MemoryLedger) ClaimKeep(ctx context.Context, caller ethcommon.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, err := l.activeKeep(id)
	if err != nil {
		return err
	}
	if caller != k.Recipient {
		return ErrNotAuthorized
	}
	now := l.now()
	if now.Before(k.UnlockTime) {
		return ErrTooEarly
	}

	k.Status = StatusClaimed
	k.ClaimedBy = caller
	l.emit(EventClaimed, id, caller, k.Recipient, now)
	return nil
}

func (l *MemoryLedger) CancelKeep(ctx context.Context, caller ethcommon.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, err := l.activeKeep(id)
	if err != nil {
		return err
	}
	if caller != k.Creator {
		return ErrNotAuthorized
	}

	k.Status = StatusCancelled
	l.emit(EventCancelled, id, caller, k.Recipient, l.now())
	return nil
}

func (l *MemoryLedger) ChangeRecipient(ctx context.Context, caller ethcommon.Address, id uint64, newRecipient ethcommon.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, err := l.activeKeep(id)
	if err != nil {
		return err
	}
	if caller != k.Creator {
		return ErrNotAuthorized
	}
	if newRecipient == (ethcommon.Address{}) || newRecipient == k.Creator || newRecipient == k.Fallback {
		return common.ErrInvalidRecipientAddress
	}

	k.Recipient = newRecipient
	l.emit(EventRecipientChanged, id, caller, newRecipient, l.now())
	return nil
}

// ActivateFallback lets the fallback take the keep once the claim window
// after unlock has passed without a recipient claim. The keep ends Expired.
func (l *MemoryLedger) ActivateFallback(ctx context.Context, caller ethcommon.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, err := l.activeKeep(id)
	if err != nil {
		return err
	}
	if !k.HasFallback() || caller != k.Fallback {
		return ErrNotAuthorized
	}
	now := l.now()
	if now.Before(k.UnlockTime.Add(l.cfg.ClaimWindow)) {
		return ErrTooEarly
	}

	k.Status = StatusExpired
	k.ClaimedBy = caller
	l.emit(EventFallbackActivated, id, caller, k.Fallback, now)
	return nil
}

func (l *MemoryLedger) GetKeep(ctx context.Context, id uint64) (*Keep, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	k, ok := l.keeps[id]
	if !ok {
		return nil, ErrKeepNotFound
	}
	cp := *k
	return &cp, nil
}

func (l *MemoryLedger) FindByContentAddress(ctx context.Context, contentAddress string) (*Keep, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// latest keep wins if the same envelope was anchored twice
	var found *Keep
	for _, k := range l.keeps {
		if k.ContentAddress == contentAddress && (found == nil || k.ID > found.ID) {
			found = k
		}
	}
	if found == nil {
		return nil, ErrKeepNotFound
	}
	cp := *found
	return &cp, nil
}

func (l *MemoryLedger) ListKeeps(ctx context.Context) ([]*Keep, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Keep, 0, len(l.keeps))
	for _, k := range l.keeps {
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *MemoryLedger) Events(ctx context.Context, id uint64) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.keeps[id]; !ok {
		return nil, ErrKeepNotFound
	}
	var out []Event
	for _, e := range l.events {
		if e.KeepID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// activeKeep must be called with mu held.
func (l *MemoryLedger) activeKeep(id uint64) (*Keep, error) {
	k, ok := l.keeps[id]
	if !ok {
		return nil, ErrKeepNotFound
	}
	if k.Status != StatusActive {
		return nil, ErrInvalidStatus
	}
	return k, nil
}

func (l *MemoryLedger) emit(kind EventKind, id uint64, actor, recipient ethcommon.Address, at time.Time) {
	l.events = append(l.events, Event{Kind: kind, KeepID: id, Actor: actor, Recipient: recipient, At: at})
}
