// Package keeps is the Keep packaging pipeline: seal content for its
// parties, publish the envelope and anchor it on chain, and unseal it again
// for whoever holds a wrapped key.
package keeps

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/keys"
	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Payload is the plaintext side of a Keep.
type Payload struct {
	Type        envelope.ContentType
	Title       string
	Description string
	Data        []byte
	FileName    string
	MimeType    string
	UnlockTime  time.Time
}

// Recipients are the parties that get a wrapped key. A zero Fallback means
// there is none.
type Recipients struct {
	Creator  ethcommon.Address
	Primary  ethcommon.Address
	Fallback ethcommon.Address
}

// AccessTerms carry raw user input; they are validated before anything is
// uploaded or sent.
type AccessTerms struct {
	Recipient      string
	Fallback       string
	UnlockTime     time.Time
	RecipientEmail string
	FallbackEmail  string
}

type Draft struct {
	Payload Payload
	Terms   AccessTerms
}

type Receipt struct {
	KeepID         uint64
	ContentAddress string
}

type Revealed struct {
	Keep *chain.Keep
	Role envelope.Role
	Meta envelope.Meta
	Data []byte
}

type Discovery struct {
	Created  []*chain.Keep
	Received []*chain.Keep
	Fallback []*chain.Keep
}

// Contact is an email to notify when a keep unlocks.
type Contact struct {
	Role    envelope.Role
	Address ethcommon.Address
	Email   string
}

// ContactRegistry hands recipient emails to the notification side.
type ContactRegistry interface {
	RegisterContacts(ctx context.Context, contentAddress string, keepID uint64, contacts []Contact) error
}

type Service interface {
	SealContent(ctx context.Context, payload Payload, recipients Recipients) (*envelope.Envelope, error)
	PublishKeep(ctx context.Context, env *envelope.Envelope, terms AccessTerms) (*Receipt, error)
	CreateKeep(ctx context.Context, draft Draft) (*Receipt, error)
	UnsealContent(ctx context.Context, contentAddress string, caller ethcommon.Address) (*Revealed, error)
	Claim(ctx context.Context, id uint64) error
	Cancel(ctx context.Context, id uint64) error
	ChangeRecipient(ctx context.Context, id uint64, newRecipient string) error
	ActivateFallback(ctx context.Context, id uint64) error
	Discover(ctx context.Context, address ethcommon.Address) (*Discovery, error)
}

type service struct {
	keys       keys.Service
	store      storage.Store
	registry   chain.Registry
	contacts   ContactRegistry
	logger     logging.Logger
	now        func() time.Time
	rand       io.Reader
	maxPayload int
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithRand replaces crypto/rand as the source of keys and IVs.
func WithRand(r io.Reader) Option {
	return func(s *service) { s.rand = r }
}

func WithMaxPayload(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// NewService builds the pipeline. contacts may be nil.
func NewService(k keys.Service, store storage.Store, registry chain.Registry, contacts ContactRegistry, logger logging.Logger, opts ...Option) Service {
	s := &service{
		keys:       k,
		store:      store,
		registry:   registry,
		contacts:   contacts,
		logger:     logger.With("module", "keeps"),
		now:        time.Now,
		rand:       rand.Reader,
		maxPayload: common.MaxPayloadSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// wallet returns the connected wallet address.
func (s *service) wallet() (ethcommon.Address, error) {
	signer := s.keys.Signer()
	if signer == nil {
		return ethcommon.Address{}, common.ErrNoWalletProvider
	}
	return signer.Address(), nil
}
