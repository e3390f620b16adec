// Package keys provisions the per-address encryption key pair. The pair is
// derived from a wallet signature, so the local cache is only a shortcut and
// never the source of truth.
package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Cache stores derived pairs by address. Get returns (nil, nil) when absent.
type Cache interface {
	Get(ctx context.Context, address ethcommon.Address) (*cryptox.KeyPair, error)
	Put(ctx context.Context, kp *cryptox.KeyPair) error
	Delete(ctx context.Context, address ethcommon.Address) error
}

// Directory publishes and looks up other users' public keys. LookupKey
// returns common.ErrEncryptionKeyUnavailable for unknown addresses.
type Directory interface {
	PublishKey(ctx context.Context, address ethcommon.Address, publicKey, signature []byte) error
	LookupKey(ctx context.Context, address ethcommon.Address) ([]byte, error)
}

// Service provisions key pairs for the connected wallet and resolves public
// keys of everyone else.
type Service interface {
	// Signer returns the connected wallet or nil.
	Signer() Signer
	GetOrCreateKeyPair(ctx context.Context, address ethcommon.Address) (*cryptox.KeyPair, error)
	ResolvePublicKey(ctx context.Context, address ethcommon.Address) ([]byte, error)
	Register(ctx context.Context) error
	Forget(ctx context.Context) error
}

type service struct {
	signer    Signer
	cache     Cache
	directory Directory
	logger    logging.Logger
}

// NewService wires the provisioning flow. signer, cache and directory may
// each be nil: without a signer no pair can be derived, without a cache every
// call signs again, and without a directory only the wallet's own key
// resolves.
func NewService(signer Signer, cache Cache, directory Directory, logger logging.Logger) Service {
	return &service{
		signer:    signer,
		cache:     cache,
		directory: directory,
		logger:    logger.With("module", "keys"),
	}
}

func (s *service) Signer() Signer {
	return s.signer
}

func (s *service) GetOrCreateKeyPair(ctx context.Context, address ethcommon.Address) (*cryptox.KeyPair, error) {
	if s.signer == nil || s.signer.Address() != address {
		return nil, common.ErrNoWalletProvider
	}

	if s.cache != nil {
		kp, err := s.cache.Get(ctx, address)
		if err != nil {
			s.logger.Warn(ctx, "key cache read failed, deriving again", "address", address.Hex(), "error", err)
		} else if kp != nil {
			return kp, nil
		}
	}

	sig, err := s.signer.SignMessage(ctx, []byte(cryptox.KeyMessage(address)))
	if err != nil {
		return nil, fmt.Errorf("%w: sign key message: %v", common.ErrNoWalletProvider, err)
	}

	kp, err := cryptox.DeriveKeyPair(sig)
	common.WipeByteArray(sig)
	if err != nil {
		return nil, fmt.Errorf("derive key pair: %w", err)
	}
	kp.Address = address

	if s.cache != nil {
		if err := s.cache.Put(ctx, kp); err != nil {
			s.logger.Warn(ctx, "key cache write failed", "address", address.Hex(), "error", err)
		}
	}
	s.logger.Debug(ctx, "key pair derived", "address", address.Hex())
	return kp, nil
}

func (s *service) ResolvePublicKey(ctx context.Context, address ethcommon.Address) ([]byte, error) {
	if s.signer != nil && s.signer.Address() == address {
		kp, err := s.GetOrCreateKeyPair(ctx, address)
		if err != nil {
			return nil, err
		}
		return kp.PublicKey, nil
	}

	if s.directory == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrEncryptionKeyUnavailable, address.Hex())
	}
	pub, err := s.directory.LookupKey(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrEncryptionKeyUnavailable) {
			return nil, fmt.Errorf("%w: %s", common.ErrEncryptionKeyUnavailable, address.Hex())
		}
		return nil, fmt.Errorf("%w: lookup %s: %v", common.ErrEncryptionKeyUnavailable, address.Hex(), err)
	}

	// keys are 65-byte uncompressed points
	if len(pub) != 65 {
		return nil, fmt.Errorf("%w: malformed key for %s", common.ErrEncryptionKeyUnavailable, address.Hex())
	}
	return pub, nil
}

// PublicationMessage is what a wallet signs to prove it owns the published
// encryption key.
func PublicationMessage(address ethcommon.Address, publicKey []byte) []byte {
	return []byte(fmt.Sprintf("Keepr public key\n\nAddress: %s\nKey: %x", address.Hex(), publicKey))
}

func (s *service) Register(ctx context.Context) error {
	if s.signer == nil {
		return common.ErrNoWalletProvider
	}
	if s.directory == nil {
		return errors.New("no key directory configured")
	}

	address := s.signer.Address()
	kp, err := s.GetOrCreateKeyPair(ctx, address)
	if err != nil {
		return err
	}

	sig, err := s.signer.SignMessage(ctx, PublicationMessage(address, kp.PublicKey))
	if err != nil {
		return fmt.Errorf("%w: sign publication: %v", common.ErrNoWalletProvider, err)
	}
	if err := s.directory.PublishKey(ctx, address, kp.PublicKey, sig); err != nil {
		return fmt.Errorf("publish key: %w", err)
	}
	s.logger.Info(ctx, "public key published", "address", address.Hex())
	return nil
}

// Forget drops the cached pair of the connected wallet.
func (s *service) Forget(ctx context.Context) error {
	if s.signer == nil || s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, s.signer.Address())
}
