// Package auth issues and checks the HS256 access tokens handed out after a
// wallet signs its login challenge.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "keepr"

// GenerateToken returns a token whose subject is the lowercase hex wallet
// address, and its expiry.
func GenerateToken(address string, secretKey []byte, validityDuration time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(validityDuration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expires, nil
}

// AddressFromToken validates tokenString and returns its subject.
func AddressFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}
