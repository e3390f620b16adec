// Package cryptox holds the cryptographic building blocks of the Keep
// pipeline: wallet-derived key pairs, AES-GCM content sealing, ECIES key
// wrapping and EIP-191 signature checks. Everything here is a pure function
// of its inputs (plus an injectable random source) so it can be tested
// without a wallet or network.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"golang.org/x/crypto/argon2"
)

const (
	// SymmetricKeySize is the content key length (AES-256).
	SymmetricKeySize = 32
	// NonceSize is the AES-GCM IV length.
	NonceSize = 12
	// SignatureSize is the length of an Ethereum [R || S || V] signature.
	SignatureSize = 65
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidKeySize   = errors.New("invalid key size")
	// ErrAuthentication means an AEAD tag or ECIES MAC did not verify:
	// the data was altered or the wrong key was used.
	ErrAuthentication = errors.New("message authentication failed")
)

// KeyPair is the secp256k1 encryption key pair bound to one wallet address.
// It is not the wallet's own signing key.
type KeyPair struct {
	Address    common.Address
	PublicKey  []byte // 65-byte uncompressed point
	PrivateKey []byte // 32-byte scalar
}

// KeyMessage is the fixed message a wallet signs to derive its encryption
// key pair. Changing it changes every derived key, which makes existing
// envelopes unrecoverable.
func KeyMessage(address common.Address) string {
	return "Keepr encryption key\n\n" +
		"Sign this message to derive the key used to encrypt and decrypt your Keeps.\n\n" +
		"Address: " + address.Hex()
}

// DeriveKeyPair turns a wallet signature over KeyMessage into a key pair.
// The private scalar is Keccak256(signature); the same signature always
// yields the same pair. The returned Address is left zero for the caller to
// fill in, since the signature alone does not say which wallet produced it.
func DeriveKeyPair(signature []byte) (*KeyPair, error) {
	if len(signature) < 64 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(signature))
	}

	seed := crypto.Keccak256(signature)
	kp, err := KeyPairFromPrivate(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return kp, nil
}

// KeyPairFromPrivate rebuilds a pair from a stored 32-byte scalar.
func KeyPairFromPrivate(priv []byte) (*KeyPair, error) {
	sk, err := crypto.ToECDSA(priv)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:  crypto.FromECDSAPub(&sk.PublicKey),
		PrivateKey: crypto.FromECDSA(sk),
	}, nil
}

// GenerateSymmetricKey reads a fresh AES-256 content key from r.
func GenerateSymmetricKey(r io.Reader) ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// SealPayload encrypts plaintext with AES-256-GCM under key using a random
// 12-byte IV read from r. The GCM tag is appended to the ciphertext.
func SealPayload(r io.Reader, key, plaintext []byte) (ciphertext, iv []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, nil, fmt.Errorf("generate iv: %w", err)
	}

	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// OpenPayload reverses SealPayload. A tag mismatch yields ErrAuthentication.
func OpenPayload(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrAuthentication, len(iv))
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// WrapKey encrypts a content key for the holder of recipientPub using ECIES
// over secp256k1.
func WrapKey(r io.Reader, recipientPub, key []byte) ([]byte, error) {
	pub, err := crypto.UnmarshalPubkey(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	wrapped, err := ecies.Encrypt(r, ecies.ImportECDSAPublic(pub), key, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey decrypts a wrapped content key with the recipient's private key.
// Any ECIES failure (corrupted blob, wrong key) yields ErrAuthentication.
func UnwrapKey(priv, wrapped []byte) ([]byte, error) {
	sk, err := crypto.ToECDSA(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySize, err)
	}

	key, err := ecies.ImportECDSA(sk).Decrypt(wrapped, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return key, nil
}

// SignMessage produces a wallet-style EIP-191 signature with V in {27, 28}.
func SignMessage(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// VerifyAddressSignature checks that sig is an EIP-191 signature of message
// made by address. Both V conventions (0/1 and 27/28) are accepted.
func VerifyAddressSignature(address common.Address, message, sig []byte) error {
	if len(sig) != SignatureSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}

	s := make([]byte, SignatureSize)
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != address {
		return fmt.Errorf("%w: signer mismatch", ErrInvalidSignature)
	}
	return nil
}

// PublicKeyAddress returns the Ethereum address of a 65-byte public key.
func PublicKeyAddress(pub []byte) (common.Address, error) {
	pk, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return crypto.PubkeyToAddress(*pk), nil
}

// DeriveMasterKey stretches the local cache passphrase with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier is stored next to the salt so a wrong passphrase is detected
// before any cached key is opened.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}
