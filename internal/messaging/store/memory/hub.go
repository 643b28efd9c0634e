// Package memory is an in-process message hub used in development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"seeddid/internal/messaging"
)

type conversation struct {
	id        string
	createdAt time.Time
	messages  []messaging.Message
}

// Hub holds every conversation in memory.
type Hub struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	byAddress     map[string]map[string]struct{}
	now           func() time.Time
}

type Option func(*Hub)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conversations: make(map[string]*conversation),
		byAddress:     make(map[string]map[string]struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Channel binds a channel to address.
func (h *Hub) Channel(_ context.Context, address string) (messaging.Channel, error) {
	address = messaging.NormalizeAddress(address)
	if address == "" {
		return nil, messaging.ErrUnauthenticated
	}
	return &Channel{hub: h, self: address}, nil
}

// Channel is the view of the hub from one address.
type Channel struct {
	hub  *Hub
	self string
}

func (c *Channel) Address() string { return c.self }

func (c *Channel) ListConversations(_ context.Context) ([]messaging.Conversation, error) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	ids := c.hub.byAddress[c.self]
	out := make([]messaging.Conversation, 0, len(ids))
	for id := range ids {
		conv := c.hub.conversations[id]
		out = append(out, c.view(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (c *Channel) ListMessages(_ context.Context, conv messaging.Conversation) ([]messaging.Message, error) {
	if err := messaging.Authorize(c.self, conv); err != nil {
		return nil, err
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	stored, ok := c.hub.conversations[conv.ID]
	if !ok {
		return []messaging.Message{}, nil
	}
	out := make([]messaging.Message, len(stored.messages))
	copy(out, stored.messages)
	return out, nil
}

func (c *Channel) Send(_ context.Context, conv messaging.Conversation, body string) (messaging.Receipt, error) {
	if err := messaging.Authorize(c.self, conv); err != nil {
		return messaging.Receipt{}, err
	}
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()

	stored := c.hub.open(conv.ID, c.self, conv.PeerAddress)
	now := c.hub.now()
	msg := messaging.Message{
		ID:             ulid.Make().String(),
		ConversationID: conv.ID,
		SenderAddress:  c.self,
		SentAt:         now,
		Body:           body,
	}
	stored.messages = append(stored.messages, msg)
	return messaging.Receipt{MessageID: msg.ID, SentAt: now}, nil
}

func (c *Channel) NewConversation(_ context.Context, peer string) (messaging.Conversation, error) {
	if err := messaging.ValidatePeer(c.self, peer); err != nil {
		return messaging.Conversation{}, err
	}
	peer = messaging.NormalizeAddress(peer)

	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	stored := c.hub.open(messaging.ConversationID(c.self, peer), c.self, peer)
	return c.view(stored), nil
}

// open returns the conversation, creating it and indexing both participants
// when missing. Callers hold the write lock.
func (h *Hub) open(id, a, b string) *conversation {
	if conv, ok := h.conversations[id]; ok {
		return conv
	}
	conv := &conversation{id: id, createdAt: h.now()}
	h.conversations[id] = conv
	for _, address := range []string{messaging.NormalizeAddress(a), messaging.NormalizeAddress(b)} {
		if h.byAddress[address] == nil {
			h.byAddress[address] = make(map[string]struct{})
		}
		h.byAddress[address][id] = struct{}{}
	}
	return conv
}

func (c *Channel) view(conv *conversation) messaging.Conversation {
	a, b, _ := messaging.Participants(conv.id)
	peer := a
	if a == c.self {
		peer = b
	}
	return messaging.Conversation{ID: conv.id, PeerAddress: peer, CreatedAt: conv.createdAt}
}
