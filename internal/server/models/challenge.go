package models

import "time"

// Challenge is a one-time login nonce issued to a wallet address.
type Challenge struct {
	Address   string
	Nonce     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
