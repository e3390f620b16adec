// Package rpc defines the Keepr gRPC service. The typed request and
// response structs below are what handlers and callers work with; on the
// wire they travel as protobuf well-known types (see wire.go) through
// gRPC's default proto codec.
package rpc

import (
	"fmt"
	"time"
)

type ChallengeRequest struct {
	Address string
}

// ChallengeResponse carries the exact text the wallet must sign.
type ChallengeResponse struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

type LoginRequest struct {
	Address   string
	Nonce     string
	Signature []byte
}

type LoginResponse struct {
	AccessToken string
	ExpiresAt   time.Time
}

type PublishKeyRequest struct {
	PublicKey []byte
	Signature []byte
}

type PublishKeyResponse struct{}

type LookupKeyRequest struct {
	Address string
}

type LookupKeyResponse struct {
	Address   string
	PublicKey []byte
}

type Contact struct {
	Role    string
	Address string
	Email   string
}

type RegisterContactsRequest struct {
	ContentAddress string
	KeepID         uint64
	Contacts       []Contact
}

type RegisterContactsResponse struct {
	Stored int
}

type PingRequest struct{}

type PingResponse struct {
	Status string
}

// LoginMessage is the text a wallet signs to answer a login challenge.
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("Keepr sign-in\n\nAddress: %s\nNonce: %s", address, nonce)
}
