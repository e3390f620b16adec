package models

import "time"

type PublicKey struct {
	Address   string
	PublicKey []byte
	Signature []byte
	UpdatedAt time.Time
}
