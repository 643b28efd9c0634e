package models

import "time"

// ChallengeMessage is the text a wallet signs to sign in.
const ChallengeMessage = "Login to the application"

type LoginRequest struct {
	Address string `json:"address"`
	// Signature is the hex Ed25519 signature of ChallengeMessage.
	Signature string `json:"signature"`
}

type Session struct {
	Address     string    `json:"address"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
