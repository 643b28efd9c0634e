package models

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidKey = errors.New("invalid key encoding")

// ParsePublicKey decodes a hex Ed25519 public key, with or without 0x.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := decodeHex(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidKey
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey accepts a hex seed or a hex expanded private key.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := decodeHex(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(raw)
		// The expanded form embeds its public half; reject inconsistent keys.
		if !ed25519.NewKeyFromSeed(priv.Seed()).Equal(priv) {
			return nil, ErrInvalidKey
		}
		return priv, nil
	default:
		return nil, ErrInvalidKey
	}
}

func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}
