package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	address := "0x00000000000000000000000000000000000000a1"

	tok, expires, err := GenerateToken(address, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Fatalf("unexpected expiry: %v", expires)
	}

	got, err := AddressFromToken(tok, secret)
	if err != nil {
		t.Fatalf("AddressFromToken error: %v", err)
	}
	if got != address {
		t.Fatalf("address mismatch: got %q want %q", got, address)
	}
}

func TestAddressFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, _, err := GenerateToken("0xa1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = AddressFromToken(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestAddressFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := GenerateToken("0xa2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = AddressFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestAddressFromToken_WrongIssuer(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "0xa3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}

	if _, err := AddressFromToken(tok, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestAddressFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := AddressFromToken("not.a.jwt", []byte("k"))
	if err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}
