package keeps

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// roleOf maps caller to the wrapped-key slot the on-chain record grants.
func roleOf(k *chain.Keep, caller ethcommon.Address) (envelope.Role, bool) {
	switch {
	case caller == (ethcommon.Address{}):
		return "", false
	case caller == k.Creator:
		return envelope.RoleCreator, true
	case caller == k.Recipient:
		return envelope.RoleRecipient, true
	case k.HasFallback() && caller == k.Fallback:
		return envelope.RoleFallback, true
	}
	return "", false
}

// recipientMoved reports whether the recipient slot of k's envelope was
// sealed for an earlier recipient than caller. The recipient named in the
// creation event is the one the envelope was sealed for.
func (s *service) recipientMoved(ctx context.Context, k *chain.Keep, caller ethcommon.Address) bool {
	events, err := s.registry.Events(ctx, k.ID)
	if err != nil {
		s.logger.Warn(ctx, "cannot read keep history", "id", k.ID, "error", err)
		return false
	}

	var sealedFor ethcommon.Address
	changed := false
	for _, e := range events {
		switch e.Kind {
		case chain.EventCreated:
			sealedFor = e.Recipient
		case chain.EventRecipientChanged:
			changed = true
		}
	}
	return changed && sealedFor != caller
}

// UnsealContent never changes chain state; claiming is a separate call.
func (s *service) UnsealContent(ctx context.Context, contentAddress string, caller ethcommon.Address) (*Revealed, error) {
	keep, err := s.registry.FindByContentAddress(ctx, contentAddress)
	if err != nil {
		return nil, fmt.Errorf("find keep %s: %w", contentAddress, err)
	}

	role, ok := roleOf(keep, caller)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no key for keep %d", common.ErrAccessDenied, caller.Hex(), keep.ID)
	}
	if role == envelope.RoleRecipient && s.recipientMoved(ctx, keep, caller) {
		return nil, fmt.Errorf("%w: keep %d was not wrapped for %s (recipient changed after sealing)",
			common.ErrAccessDenied, keep.ID, caller.Hex())
	}

	kp, err := s.keys.GetOrCreateKeyPair(ctx, caller)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Download(ctx, contentAddress)
	if err != nil {
		if errors.Is(err, storage.ErrAddressMismatch) {
			return nil, fmt.Errorf("%w: %v", common.ErrContentIntegrityFailure, err)
		}
		return nil, fmt.Errorf("download envelope: %w", err)
	}

	env, err := envelope.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrContentIntegrityFailure, err)
	}

	wrapped := env.WrappedKey(role)
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: no %s key in envelope", common.ErrContentIntegrityFailure, role)
	}

	key, err := cryptox.UnwrapKey(kp.PrivateKey, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap %s key: %v", common.ErrContentIntegrityFailure, role, err)
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.OpenPayload(key, env.IV, env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrContentIntegrityFailure, err)
	}

	s.logger.Debug(ctx, "keep unsealed", "id", keep.ID, "role", role)
	return &Revealed{Keep: keep, Role: role, Meta: env.Meta, Data: plaintext}, nil
}
