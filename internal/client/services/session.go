package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/client/client"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/keeps"
	"github.com/dmitrijs2005/keepr/internal/keys"
	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// RegistryFactory returns a registry that sends writes as signer (nil for a
// read-only registry) and a func releasing it.
type RegistryFactory func(ctx context.Context, signer chain.Transactor) (chain.Registry, func(), error)

// Session holds the connected wallet and the Keep pipeline built around it.
// Before Connect the pipeline still answers, but every wallet-bound
// operation fails with common.ErrNoWalletProvider.
type Session struct {
	client     client.Client
	store      storage.Store
	cache      keys.Cache
	registries RegistryFactory
	logger     logging.Logger
	opts       []keeps.Option

	mu            sync.RWMutex
	signer        keys.Signer
	signedIn      bool
	keys          keys.Service
	keeps         keeps.Service
	closeRegistry func()
}

// NewSession builds a disconnected session. c and cache may be nil: without
// a server there is no key directory or contact registry, and without a
// cache every key pair is derived again.
func NewSession(ctx context.Context, c client.Client, store storage.Store, cache keys.Cache,
	registries RegistryFactory, logger logging.Logger, opts ...keeps.Option) (*Session, error) {
	s := &Session{
		client:     c,
		store:      store,
		cache:      cache,
		registries: registries,
		logger:     logger.With("module", "session"),
		opts:       opts,
	}
	if err := s.rebuild(ctx, nil, false); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild swaps in a pipeline bound to signer. Callers hold no lock.
func (s *Session) rebuild(ctx context.Context, signer keys.Signer, signedIn bool) error {
	var transactor chain.Transactor
	if signer != nil {
		transactor = signer
	}
	registry, closeRegistry, err := s.registries(ctx, transactor)
	if err != nil {
		return err
	}

	var (
		directory keys.Directory
		contacts  keeps.ContactRegistry
	)
	if s.client != nil {
		directory = s.client
		if signedIn {
			contacts = s.client
		}
	}

	ks := keys.NewService(signer, s.cache, directory, s.logger)
	kp := keeps.NewService(ks, s.store, registry, contacts, s.logger, s.opts...)

	s.mu.Lock()
	previous := s.closeRegistry
	s.signer, s.signedIn, s.keys, s.keeps, s.closeRegistry = signer, signedIn, ks, kp, closeRegistry
	s.mu.Unlock()

	if previous != nil {
		previous()
	}
	return nil
}

// Connect binds the pipeline to signer. When a server is configured it also
// signs in and publishes the wallet's encryption key. Server failures are
// logged and leave the session usable for everything that does not need the
// directory.
func (s *Session) Connect(ctx context.Context, signer keys.Signer) error {
	if signer == nil {
		return common.ErrNoWalletProvider
	}

	signedIn := false
	if s.client != nil {
		if err := s.client.SignIn(ctx, signer); err != nil {
			s.logger.Warn(ctx, "server sign-in failed, continuing offline", "error", err)
		} else {
			signedIn = true
		}
	}

	if err := s.rebuild(ctx, signer, signedIn); err != nil {
		return err
	}

	if signedIn {
		if err := s.Keys().Register(ctx); err != nil {
			s.logger.Warn(ctx, "public key was not published", "error", err)
		}
	} else if _, err := s.Keys().GetOrCreateKeyPair(ctx, signer.Address()); err != nil {
		return err
	}

	s.logger.Info(ctx, "wallet connected", "address", signer.Address().Hex(), "online", signedIn)
	return nil
}

// Disconnect drops the wallet. Cached key pairs stay in the vault.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.client != nil {
		s.client.SignOut()
	}
	return s.rebuild(ctx, nil, false)
}

// Wallet returns the connected address.
func (s *Session) Wallet() (ethcommon.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return ethcommon.Address{}, false
	}
	return s.signer.Address(), true
}

func (s *Session) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

func (s *Session) Keys() keys.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys
}

func (s *Session) Keeps() keeps.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keeps
}

// Ping probes the server. It reports client.ErrUnavailable when no server is
// configured.
func (s *Session) Ping(ctx context.Context) error {
	if s.client == nil {
		return client.ErrUnavailable
	}
	return s.client.Ping(ctx)
}

// ForgetKey drops the cached key pair of the connected wallet.
func (s *Session) ForgetKey(ctx context.Context) error {
	ks := s.Keys()
	if ks.Signer() == nil {
		return common.ErrNoWalletProvider
	}
	return ks.Forget(ctx)
}

func (s *Session) Close() error {
	s.mu.Lock()
	closeRegistry := s.closeRegistry
	s.closeRegistry = nil
	s.mu.Unlock()

	if closeRegistry != nil {
		closeRegistry()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
