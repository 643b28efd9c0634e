// Package messaging defines the peer-to-peer message channel the approval
// flow runs over. A Channel is bound to one wallet address and sees only the
// conversations that address takes part in.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnauthenticated means the channel is not bound to an address, or the
	// address is not a participant of the conversation.
	ErrUnauthenticated = errors.New("messaging: unauthenticated")
	// ErrNetwork wraps transport failures.
	ErrNetwork = errors.New("messaging: network error")
	// ErrInvalidPeer rejects conversations with an empty peer or with oneself.
	ErrInvalidPeer = errors.New("messaging: invalid peer address")
)

// Conversation is a two-party channel between the bound address and PeerAddress.
type Conversation struct {
	ID          string    `json:"id"`
	PeerAddress string    `json:"peer_address"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is immutable once delivered. ID is unique within its conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderAddress  string    `json:"sender"`
	SentAt         time.Time `json:"sent_at"`
	Body           string    `json:"body"`
}

// Receipt acknowledges that a message was accepted by the channel.
type Receipt struct {
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// Channel is the messaging client of one address.
type Channel interface {
	Address() string
	ListConversations(ctx context.Context) ([]Conversation, error)
	// ListMessages returns the full history in delivery order.
	ListMessages(ctx context.Context, conv Conversation) ([]Message, error)
	Send(ctx context.Context, conv Conversation, body string) (Receipt, error)
	// NewConversation opens the conversation with peer, or returns the existing one.
	NewConversation(ctx context.Context, peer string) (Conversation, error)
}

// Hub hands out channels bound to an address.
type Hub interface {
	Channel(ctx context.Context, address string) (Channel, error)
}

// NormalizeAddress canonicalizes a wallet address for comparison.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ConversationID is the stable id of the conversation between a and b.
func ConversationID(a, b string) string {
	a, b = NormalizeAddress(a), NormalizeAddress(b)
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Participants splits a conversation id into its two addresses.
func Participants(conversationID string) (string, string, bool) {
	return strings.Cut(conversationID, ":")
}

// Authorize checks that self takes part in conv.
func Authorize(self string, conv Conversation) error {
	if self == "" {
		return ErrUnauthenticated
	}
	if conv.ID != ConversationID(self, conv.PeerAddress) {
		return fmt.Errorf("%w: not a participant of %s", ErrUnauthenticated, conv.ID)
	}
	return nil
}

// ValidatePeer rejects empty peers and conversations with oneself.
func ValidatePeer(self, peer string) error {
	if self == "" {
		return ErrUnauthenticated
	}
	peer = NormalizeAddress(peer)
	if peer == "" || peer == NormalizeAddress(self) || strings.Contains(peer, ":") {
		return ErrInvalidPeer
	}
	return nil
}

// SameAddress compares two wallet addresses case-insensitively.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
