package seal

import (
	"context"
	"fmt"
	"log/slog"

	"seeddid/internal/messaging"
)

// Hub wraps another hub so bodies are sealed on send and opened on read.
type Hub struct {
	inner  messaging.Hub
	keys   KeyStore
	logger *slog.Logger
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(inner messaging.Hub, keys KeyStore, opts ...Option) *Hub {
	h := &Hub{inner: inner, keys: keys, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Channel(ctx context.Context, address string) (messaging.Channel, error) {
	inner, err := h.inner.Channel(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Channel{Channel: inner, keys: h.keys, logger: h.logger}, nil
}

// Channel seals outgoing bodies. Bodies it cannot open are returned as
// stored, which downstream decoding treats as unrecognized.
type Channel struct {
	messaging.Channel
	keys   KeyStore
	logger *slog.Logger
}

func (c *Channel) ListMessages(ctx context.Context, conv messaging.Conversation) ([]messaging.Message, error) {
	msgs, err := c.Channel.ListMessages(ctx, conv)
	if err != nil {
		return nil, err
	}

	var key []byte
	for i, msg := range msgs {
		if !IsSealed(msg.Body) {
			continue
		}
		if key == nil {
			key, err = c.conversationKey(ctx, conv)
			if err != nil {
				c.logger.WarnContext(ctx, "conversation key unavailable",
					"conversation_id", conv.ID, "error", err)
				return msgs, nil
			}
		}
		plain, err := Open(key, conv.ID, msg.Body)
		if err != nil {
			c.logger.DebugContext(ctx, "leaving sealed body unopened",
				"conversation_id", conv.ID, "message_id", msg.ID, "error", err)
			continue
		}
		msgs[i].Body = plain
	}
	return msgs, nil
}

func (c *Channel) Send(ctx context.Context, conv messaging.Conversation, body string) (messaging.Receipt, error) {
	key, err := c.conversationKey(ctx, conv)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("seal message: %w", err)
	}
	sealed, err := Seal(key, conv.ID, body)
	if err != nil {
		return messaging.Receipt{}, err
	}
	return c.Channel.Send(ctx, conv, sealed)
}

func (c *Channel) conversationKey(ctx context.Context, conv messaging.Conversation) ([]byte, error) {
	priv, err := c.keys.PrivateKey(ctx, c.Address())
	if err != nil {
		return nil, fmt.Errorf("load own key: %w", err)
	}
	pub, err := c.keys.PublicKey(ctx, conv.PeerAddress)
	if err != nil {
		return nil, fmt.Errorf("load peer key: %w", err)
	}
	return ConversationKey(priv, pub, conv.ID)
}
