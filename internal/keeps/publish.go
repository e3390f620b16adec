package keeps

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// prepare reads the registry configuration and validates terms. Nothing is
// uploaded or sent before it succeeds.
func (s *service) prepare(ctx context.Context, terms AccessTerms) (ethcommon.Address, chain.Config, *validatedTerms, error) {
	creator, err := s.wallet()
	if err != nil {
		return ethcommon.Address{}, chain.Config{}, nil, err
	}
	cfg, err := s.registry.Config(ctx)
	if err != nil {
		return ethcommon.Address{}, chain.Config{}, nil, fmt.Errorf("read registry config: %w", err)
	}
	v, err := validateTerms(creator, terms, cfg, s.now())
	if err != nil {
		return ethcommon.Address{}, chain.Config{}, nil, err
	}
	return creator, cfg, v, nil
}

// matchTerms checks that env was sealed for the terms it is about to be
// anchored with.
func matchTerms(env *envelope.Envelope, terms AccessTerms) error {
	if env == nil {
		return fmt.Errorf("%w: nil envelope", envelope.ErrMalformedEnvelope)
	}
	if err := env.Validate(); err != nil {
		return err
	}
	if env.Meta.UnlockTime != terms.UnlockTime.Unix() {
		return fmt.Errorf("%w: envelope unlocks at %d, terms at %d",
			common.ErrUnlockTimeOutOfRange, env.Meta.UnlockTime, terms.UnlockTime.Unix())
	}
	hasSlot := len(env.EncryptedFallbackKey) > 0
	if hasSlot != (terms.Fallback != "") {
		return fmt.Errorf("%w: envelope fallback key present=%t, fallback in terms=%t",
			common.ErrInvalidRecipientAddress, hasSlot, terms.Fallback != "")
	}
	return nil
}

// PublishKeep anchors an envelope sealed by SealContent. The envelope must
// agree with terms on unlock time and on having a fallback.
func (s *service) PublishKeep(ctx context.Context, env *envelope.Envelope, terms AccessTerms) (*Receipt, error) {
	if err := matchTerms(env, terms); err != nil {
		return nil, err
	}
	creator, cfg, v, err := s.prepare(ctx, terms)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, creator, cfg, v, env)
}

func (s *service) CreateKeep(ctx context.Context, draft Draft) (*Receipt, error) {
	if len(draft.Payload.Data) > s.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", common.ErrPayloadTooLarge, len(draft.Payload.Data), s.maxPayload)
	}

	creator, cfg, v, err := s.prepare(ctx, draft.Terms)
	if err != nil {
		return nil, err
	}

	payload := draft.Payload
	payload.UnlockTime = v.unlock
	env, err := s.SealContent(ctx, payload, Recipients{Creator: creator, Primary: v.recipient, Fallback: v.fallback})
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, creator, cfg, v, env)
}

// publish uploads first and only then anchors on chain, so an on-chain
// record never points at missing content.
func (s *service) publish(ctx context.Context, creator ethcommon.Address, cfg chain.Config, v *validatedTerms, env *envelope.Envelope) (*Receipt, error) {
	data, err := envelope.Marshal(env)
	if err != nil {
		return nil, err
	}

	tags := map[string]string{
		storage.TagCreator:   creator.Hex(),
		storage.TagRecipient: v.recipient.Hex(),
		storage.TagType:      string(env.Meta.Type),
	}
	if v.fallback != (ethcommon.Address{}) {
		tags[storage.TagFallback] = v.fallback.Hex()
	}

	addr, err := s.store.Upload(ctx, data, storage.Metadata{Name: "keepr-envelope.json", Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUploadFailed, err)
	}
	s.logger.Info(ctx, "envelope uploaded", "cid", addr, "bytes", len(data))

	// the registry checks the window again against its own clock
	if now := s.now(); !cfg.CheckUnlockTime(now, v.unlock) {
		return nil, fmt.Errorf("%w: %s left the window while uploading %s, pick a later unlock time",
			common.ErrUnlockTimeOutOfRange, v.unlock.UTC().Format(time.RFC3339), addr)
	}

	id, err := s.registry.CreateKeep(ctx, creator, chain.CreateRequest{
		Recipient:      v.recipient,
		Fallback:       v.fallback,
		ContentAddress: addr,
		UnlockTime:     v.unlock,
		Type:           string(env.Meta.Type),
		Title:          env.Meta.Title,
		Description:    env.Meta.Description,
	}, cfg.PlatformFee)
	if err != nil {
		s.logger.Error(ctx, "keep anchoring failed", "cid", addr, "error", err)
		return nil, &common.ChainTxError{Op: "createKeep", ContentAddress: addr, Err: err}
	}
	s.logger.Info(ctx, "keep created", "id", id, "cid", addr)

	if len(v.contacts) > 0 && s.contacts != nil {
		if err := s.contacts.RegisterContacts(ctx, addr, id, v.contacts); err != nil {
			s.logger.Warn(ctx, "contact registration failed", "id", id, "error", err)
		}
	}
	return &Receipt{KeepID: id, ContentAddress: addr}, nil
}
