package client

import (
	"context"

	"github.com/dmitrijs2005/keepr/internal/keeps"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Signer is the part of a wallet the client needs to answer a login
// challenge. keys.Signer satisfies it.
type Signer interface {
	Address() ethcommon.Address
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Client talks to the Keepr server. It doubles as the key directory and the
// contact registry of the pipeline.
type Client interface {
	Close() error
	SignIn(ctx context.Context, signer Signer) error
	SignOut()
	Address() (ethcommon.Address, bool)
	Ping(ctx context.Context) error
	PublishKey(ctx context.Context, address ethcommon.Address, publicKey, signature []byte) error
	LookupKey(ctx context.Context, address ethcommon.Address) ([]byte, error)
	RegisterContacts(ctx context.Context, contentAddress string, keepID uint64, contacts []keeps.Contact) error
}
