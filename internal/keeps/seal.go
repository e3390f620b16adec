package keeps

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type party struct {
	role    envelope.Role
	address ethcommon.Address
}

// SealContent encrypts payload under a fresh content key and wraps that key
// once per party. The size ceiling is checked before any key material is
// generated.
func (s *service) SealContent(ctx context.Context, payload Payload, recipients Recipients) (*envelope.Envelope, error) {
	if len(payload.Data) > s.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", common.ErrPayloadTooLarge, len(payload.Data), s.maxPayload)
	}
	if payload.UnlockTime.IsZero() {
		return nil, fmt.Errorf("%w: unlock time is not set", common.ErrUnlockTimeOutOfRange)
	}

	parties := []party{
		{envelope.RoleCreator, recipients.Creator},
		{envelope.RoleRecipient, recipients.Primary},
	}
	if recipients.Fallback != (ethcommon.Address{}) {
		parties = append(parties, party{envelope.RoleFallback, recipients.Fallback})
	}

	pubs := make(map[envelope.Role][]byte, len(parties))
	for _, p := range parties {
		pub, err := s.keys.ResolvePublicKey(ctx, p.address)
		if err != nil {
			return nil, fmt.Errorf("resolve %s key: %w", p.role, err)
		}
		pubs[p.role] = pub
	}

	key, err := cryptox.GenerateSymmetricKey(s.rand)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ciphertext, iv, err := cryptox.SealPayload(s.rand, key, payload.Data)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	env := &envelope.Envelope{
		Ciphertext: ciphertext,
		IV:         iv,
		Meta: envelope.Meta{
			Title:       payload.Title,
			Description: payload.Description,
			Type:        payload.Type,
			UnlockTime:  payload.UnlockTime.Unix(),
			Status:      chain.StatusActive.String(),
			FileName:    payload.FileName,
			MimeType:    payload.MimeType,
		},
	}
	if env.Meta.Type == "" {
		env.Meta.Type = envelope.TypeText
	}

	for _, p := range parties {
		wrapped, err := cryptox.WrapKey(s.rand, pubs[p.role], key)
		if err != nil {
			return nil, fmt.Errorf("%w: wrap for %s: %v", common.ErrEncryptionKeyUnavailable, p.role, err)
		}
		if err := env.SetWrappedKey(p.role, wrapped); err != nil {
			return nil, err
		}
	}
	return env, nil
}
