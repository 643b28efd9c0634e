package models

import "time"

// DID binds a wallet address to its Ed25519 identity key pair. The private
// key is only ever held sealed.
type DID struct {
	Address          string
	PublicKey        string // hex
	SealedPrivateKey []byte
	CreatedAt        time.Time
}

// SaveRequest is the body of POST /did. Keys are hex encoded; the private key
// may be the 32-byte seed or the 64-byte expanded form.
type SaveRequest struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}
