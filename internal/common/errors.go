// Package common defines shared constants and sentinel errors used across
// the Keepr client and server. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Key provisioning.
	ErrNoWalletProvider         = errors.New("no wallet provider")
	ErrEncryptionKeyUnavailable = errors.New("encryption key unavailable")

	// Validation errors, detected before any network or cryptographic work.
	ErrPayloadTooLarge         = errors.New("payload too large")
	ErrInvalidRecipientAddress = errors.New("invalid recipient address")
	ErrUnlockTimeOutOfRange    = errors.New("unlock time out of range")
	ErrInvalidEmail            = errors.New("invalid email")
	ErrInvalidAddress          = errors.New("invalid address")

	// Infrastructure errors.
	ErrStorageUploadFailed    = errors.New("storage upload failed")
	ErrChainTransactionFailed = errors.New("chain transaction failed")

	// Reveal errors.
	ErrAccessDenied            = errors.New("access denied")
	ErrContentIntegrityFailure = errors.New("content integrity failure")
)

// ChainTxError reports a chain write that failed after the envelope had
// already been stored. ContentAddress is set when the content exists in
// storage, so only the chain step needs to be retried.
type ChainTxError struct {
	Op             string
	ContentAddress string
	Err            error
}

func (e *ChainTxError) Error() string {
	if e.ContentAddress != "" {
		return fmt.Sprintf("%s: %v (content %s is stored)", e.Op, e.Err, e.ContentAddress)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ChainTxError) Unwrap() []error {
	return []error{ErrChainTransactionFailed, e.Err}
}
