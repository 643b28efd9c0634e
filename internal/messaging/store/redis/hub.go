// Package redis stores conversations in Redis so every API instance sees the
// same message history.
//
// Layout:
//
//	conv:{id}        hash   created_at (unix ms)
//	convs:{address}  zset   conversation ids scored by creation time
//	msgs:{id}        list   JSON messages in delivery order
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"seeddid/internal/messaging"
)

func conversationKey(id string) string { return "conv:" + id }
func inboxKey(address string) string   { return "convs:" + address }
func messagesKey(id string) string     { return "msgs:" + id }

// Hub hands out Redis-backed channels.
type Hub struct {
	client *redis.Client
	now    func() time.Time
}

func NewHub(client *redis.Client) *Hub {
	return &Hub{client: client, now: time.Now}
}

func (h *Hub) Channel(_ context.Context, address string) (messaging.Channel, error) {
	address = messaging.NormalizeAddress(address)
	if address == "" {
		return nil, messaging.ErrUnauthenticated
	}
	return &Channel{hub: h, self: address}, nil
}

// Channel is one address's view of the Redis message store.
type Channel struct {
	hub  *Hub
	self string
}

func (c *Channel) Address() string { return c.self }

func (c *Channel) ListConversations(ctx context.Context) ([]messaging.Conversation, error) {
	ids, err := c.hub.client.ZRange(ctx, inboxKey(c.self), 0, -1).Result()
	if err != nil {
		return nil, networkError("list conversations", err)
	}
	if len(ids) == 0 {
		return []messaging.Conversation{}, nil
	}

	pipe := c.hub.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, conversationKey(id), "created_at")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, networkError("load conversations", err)
	}

	out := make([]messaging.Conversation, 0, len(ids))
	for i, id := range ids {
		conv := c.view(id, parseMillis(cmds[i].Val()))
		out = append(out, conv)
	}
	return out, nil
}

func (c *Channel) ListMessages(ctx context.Context, conv messaging.Conversation) ([]messaging.Message, error) {
	if err := messaging.Authorize(c.self, conv); err != nil {
		return nil, err
	}
	raw, err := c.hub.client.LRange(ctx, messagesKey(conv.ID), 0, -1).Result()
	if err != nil {
		return nil, networkError("list messages", err)
	}
	out := make([]messaging.Message, 0, len(raw))
	for _, data := range raw {
		var msg messaging.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			// Entries are written by Send only; skip anything foreign.
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Channel) Send(ctx context.Context, conv messaging.Conversation, body string) (messaging.Receipt, error) {
	if err := messaging.Authorize(c.self, conv); err != nil {
		return messaging.Receipt{}, err
	}
	if _, err := c.open(ctx, conv.ID); err != nil {
		return messaging.Receipt{}, err
	}

	now := c.hub.now().UTC()
	msg := messaging.Message{
		ID:             ulid.Make().String(),
		ConversationID: conv.ID,
		SenderAddress:  c.self,
		SentAt:         now,
		Body:           body,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("encode message: %w", err)
	}
	if err := c.hub.client.RPush(ctx, messagesKey(conv.ID), data).Err(); err != nil {
		return messaging.Receipt{}, networkError("send message", err)
	}
	return messaging.Receipt{MessageID: msg.ID, SentAt: now}, nil
}

func (c *Channel) NewConversation(ctx context.Context, peer string) (messaging.Conversation, error) {
	if err := messaging.ValidatePeer(c.self, peer); err != nil {
		return messaging.Conversation{}, err
	}
	id := messaging.ConversationID(c.self, peer)
	createdAt, err := c.open(ctx, id)
	if err != nil {
		return messaging.Conversation{}, err
	}
	return c.view(id, createdAt), nil
}

// open creates the conversation hash and indexes it for both participants.
// Existing conversations keep their original creation time.
func (c *Channel) open(ctx context.Context, id string) (time.Time, error) {
	a, b, _ := messaging.Participants(id)
	now := c.hub.now().UTC().UnixMilli()

	_, err := c.hub.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, conversationKey(id), "created_at", now)
		pipe.ZAddNX(ctx, inboxKey(a), redis.Z{Score: float64(now), Member: id})
		pipe.ZAddNX(ctx, inboxKey(b), redis.Z{Score: float64(now), Member: id})
		return nil
	})
	if err != nil {
		return time.Time{}, networkError("open conversation", err)
	}

	created, err := c.hub.client.HGet(ctx, conversationKey(id), "created_at").Result()
	if err != nil {
		return time.Time{}, networkError("load conversation", err)
	}
	return parseMillis(created), nil
}

func (c *Channel) view(id string, createdAt time.Time) messaging.Conversation {
	a, b, _ := messaging.Participants(id)
	peer := a
	if a == c.self {
		peer = b
	}
	return messaging.Conversation{ID: id, PeerAddress: peer, CreatedAt: createdAt}
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func networkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", messaging.ErrNetwork, op, err)
}
