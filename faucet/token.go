// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/spf13/cast"
)

const defaultTokenIssuer = "arethusa"

var errNoSigningKey = errors.New("a signing key is required to mint tokens")

// TokenConfig shapes the JWTs minted for auth token faucets.
type TokenConfig struct {
	// Issuer is the iss claim. Defaults to the service name.
	Issuer string

	// Key signs the token (HS256).
	Key string

	// Claims are fixed extra claims stamped onto every minted token.
	Claims map[string]interface{}
}

// minter turns a faucet's auth token payload into a signed JWT. The token
// expiry always matches the faucet expiry, so a leaked QR code and its
// minted tokens die together.
type minter struct {
	config TokenConfig
}

func newMinter(config TokenConfig) (*minter, error) {
	if config.Key == "" {
		return nil, errNoSigningKey
	}
	if config.Issuer == "" {
		config.Issuer = defaultTokenIssuer
	}
	return &minter{config: config}, nil
}

func (m *minter) Mint(subject, scope string, now time.Time, expires *time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   m.config.Issuer,
		"sub":   subject,
		"scope": scope,
		"iat":   now.Unix(),
	}
	if expires != nil {
		claims["exp"] = expires.Unix()
	}
	for k, v := range m.config.Claims {
		claims[k] = cast.ToString(v)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Key))
}
