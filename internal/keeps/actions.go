package keeps

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

func (s *service) write(ctx context.Context, op string, id uint64, fn func(caller ethcommon.Address) error) error {
	caller, err := s.wallet()
	if err != nil {
		return err
	}
	if err := fn(caller); err != nil {
		return &common.ChainTxError{Op: op, Err: err}
	}
	s.logger.Info(ctx, "keep updated", "op", op, "id", id)
	return nil
}

func (s *service) Claim(ctx context.Context, id uint64) error {
	return s.write(ctx, "claimKeep", id, func(caller ethcommon.Address) error {
		return s.registry.ClaimKeep(ctx, caller, id)
	})
}

func (s *service) Cancel(ctx context.Context, id uint64) error {
	return s.write(ctx, "cancelKeep", id, func(caller ethcommon.Address) error {
		return s.registry.CancelKeep(ctx, caller, id)
	})
}

// ChangeRecipient only moves the on-chain claim right. The envelope stays
// wrapped for the parties it was sealed for.
func (s *service) ChangeRecipient(ctx context.Context, id uint64, newRecipient string) error {
	addr, err := parseAddress("recipient", newRecipient)
	if err != nil {
		return err
	}
	return s.write(ctx, "changeRecipient", id, func(caller ethcommon.Address) error {
		return s.registry.ChangeRecipient(ctx, caller, id, addr)
	})
}

func (s *service) ActivateFallback(ctx context.Context, id uint64) error {
	return s.write(ctx, "activateFallback", id, func(caller ethcommon.Address) error {
		return s.registry.ActivateFallback(ctx, caller, id)
	})
}

// Discover finds envelopes tagged with address and sorts them by the role the
// on-chain record gives address. Envelopes without a chain record are skipped.
// Keeps whose recipient moved to address after upload carry no tag for it, so
// the registry is scanned for those as well.
func (s *service) Discover(ctx context.Context, address ethcommon.Address) (*Discovery, error) {
	hex := address.Hex()
	pins, err := s.store.List(ctx, storage.Filter{Any: map[string]string{
		storage.TagCreator:   hex,
		storage.TagRecipient: hex,
		storage.TagFallback:  hex,
	}})
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}

	out := &Discovery{}
	seen := make(map[uint64]bool)
	add := func(k *chain.Keep) {
		if seen[k.ID] {
			return
		}
		seen[k.ID] = true

		switch {
		case k.Creator == address:
			out.Created = append(out.Created, k)
		case k.Recipient == address:
			out.Received = append(out.Received, k)
		case k.HasFallback() && k.Fallback == address:
			out.Fallback = append(out.Fallback, k)
		}
	}

	for _, p := range pins {
		k, err := s.registry.FindByContentAddress(ctx, p.Address)
		if errors.Is(err, chain.ErrKeepNotFound) {
			s.logger.Debug(ctx, "orphaned envelope", "cid", p.Address)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find keep %s: %w", p.Address, err)
		}
		add(k)
	}

	all, err := s.registry.ListKeeps(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot list keeps", "error", err)
	}
	for _, k := range all {
		if k.Recipient == address {
			add(k)
		}
	}

	for _, list := range [][]*chain.Keep{out.Created, out.Received, out.Fallback} {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}
