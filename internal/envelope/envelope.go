// Package envelope defines the JSON document that is stored for every Keep.
// The shape is a compatibility contract with previously published Keeps and
// must round-trip exactly.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// ContentType tags what the ciphertext decrypts to.
type ContentType string

const (
	TypeText ContentType = "text"
	TypeFile ContentType = "file"
)

// Role selects a wrapped-key slot. Slots are keyed by role rather than by
// address so an envelope stays self-describing.
type Role string

const (
	RoleCreator   Role = "creator"
	RoleRecipient Role = "recipient"
	RoleFallback  Role = "fallback"
)

// ByteArray encodes as a JSON array of numbers. Base64 strings are accepted
// when decoding.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("byte array: %w", err)
		}
		*b = decoded
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte array: value %d at index %d out of range", n, i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

type Meta struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        ContentType `json:"type"`
	// UnlockTime is in unix seconds.
	UnlockTime int64  `json:"unlockTime"`
	Status     string `json:"status"`
	FileName   string `json:"fileName,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
}

type Envelope struct {
	Ciphertext            ByteArray `json:"ciphertext"`
	IV                    ByteArray `json:"iv"`
	EncryptedCreatorKey   ByteArray `json:"encryptedCreatorKey"`
	EncryptedRecipientKey ByteArray `json:"encryptedRecipientKey"`
	EncryptedFallbackKey  ByteArray `json:"encryptedFallbackKey,omitempty"`
	Meta                  Meta      `json:"meta"`
}

// WrappedKey returns the slot for role, or nil when the slot is empty.
func (e *Envelope) WrappedKey(role Role) []byte {
	switch role {
	case RoleCreator:
		return e.EncryptedCreatorKey
	case RoleRecipient:
		return e.EncryptedRecipientKey
	case RoleFallback:
		return e.EncryptedFallbackKey
	}
	return nil
}

func (e *Envelope) SetWrappedKey(role Role, key []byte) error {
	switch role {
	case RoleCreator:
		e.EncryptedCreatorKey = key
	case RoleRecipient:
		e.EncryptedRecipientKey = key
	case RoleFallback:
		e.EncryptedFallbackKey = key
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

// Validate checks the fields every envelope must carry.
func (e *Envelope) Validate() error {
	switch {
	case len(e.Ciphertext) == 0:
		return fmt.Errorf("%w: missing ciphertext", ErrMalformedEnvelope)
	case len(e.IV) == 0:
		return fmt.Errorf("%w: missing iv", ErrMalformedEnvelope)
	case len(e.EncryptedCreatorKey) == 0:
		return fmt.Errorf("%w: missing creator key", ErrMalformedEnvelope)
	case len(e.EncryptedRecipientKey) == 0:
		return fmt.Errorf("%w: missing recipient key", ErrMalformedEnvelope)
	}
	return nil
}

func Marshal(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
