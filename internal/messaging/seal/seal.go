// Package seal encrypts message bodies end to end. Both participants derive
// the same conversation key from their Ed25519 identity keys, so either side
// can read the whole history, including what it sent itself.
package seal

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	prefix  = "sealed:v1:"
	keyInfo = "seeddid-conv-v1"
)

var (
	ErrInvalidKey = errors.New("seal: invalid key")
	ErrNotSealed  = errors.New("seal: body is not sealed")
	ErrOpen       = errors.New("seal: cannot open body")
)

// KeyStore resolves the identity keys of wallet addresses.
type KeyStore interface {
	PrivateKey(ctx context.Context, address string) (ed25519.PrivateKey, error)
	PublicKey(ctx context.Context, address string) (ed25519.PublicKey, error)
}

// IsSealed reports whether body carries the sealed prefix.
func IsSealed(body string) bool {
	return strings.HasPrefix(body, prefix)
}

// ConversationKey derives the symmetric key shared by self and peer for one
// conversation.
func ConversationKey(self ed25519.PrivateKey, peer ed25519.PublicKey, conversationID string) ([]byte, error) {
	if len(self) != ed25519.PrivateKeySize || len(peer) != ed25519.PublicKeySize {
		return nil, ErrInvalidKey
	}
	peerX, err := publicToX25519(peer)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(privateToX25519(self), peerX)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, shared, []byte(conversationID), []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive conversation key: %w", err)
	}
	return key, nil
}

// Seal encrypts body. The conversation id is bound as associated data so a
// sealed body cannot be replayed into another conversation.
func Seal(key []byte, conversationID, body string) (string, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(body)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(body), []byte(conversationID))
	return prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func Open(key []byte, conversationID, sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpen, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrOpen
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(conversationID))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return string(plain), nil
}

func publicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return p.BytesMontgomery(), nil
}

// privateToX25519 follows RFC 8032: the scalar is the clamped lower half of
// SHA-512(seed).
func privateToX25519(priv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(priv.Seed())
	s := h[:32]
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
	return s
}
