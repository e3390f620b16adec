package models

import "time"

// Contact is an email registered for one party of a keep. Address is the
// lowercase hex wallet address.
type Contact struct {
	ContentAddress string
	KeepID         uint64
	Role           string
	Address        string
	Email          string
	CreatedAt      time.Time
}
