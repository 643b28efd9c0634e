// Package breaker guards a message hub with a circuit breaker so a dead
// backend fails requests fast instead of tying up every scan until timeout.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"seeddid/internal/messaging"
)

// ErrOpen is returned while the circuit is open. It also matches
// messaging.ErrNetwork.
var ErrOpen = errors.New("messaging: circuit open")

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
)

// circuitBreaker opens after failureThreshold consecutive network failures.
// Once cooldown has passed it lets calls through again and closes after
// successThreshold consecutive successes; any failure in that window reopens it.
type circuitBreaker struct {
	mu               sync.Mutex
	state            circuitState
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == circuitClosed || c.now().Sub(c.openedAt) >= c.cooldown
}

// recordFailure reports whether this failure opened the circuit.
func (c *circuitBreaker) recordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if c.state == circuitOpen {
		c.openedAt = c.now()
		return false
	}
	if c.failureCount >= c.failureThreshold {
		c.state = circuitOpen
		c.openedAt = c.now()
		return true
	}
	return false
}

// recordSuccess reports whether this success closed the circuit.
func (c *circuitBreaker) recordSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == circuitOpen {
		c.successCount++
		if c.successCount >= c.successThreshold {
			c.state = circuitClosed
			c.failureCount = 0
			c.successCount = 0
			return true
		}
		return false
	}
	c.failureCount = 0
	return false
}

// Hub wraps another hub. All channels it hands out share one circuit.
type Hub struct {
	inner   messaging.Hub
	circuit *circuitBreaker
	logger  *slog.Logger
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithThresholds sets how many consecutive failures open the circuit and how
// many successes close it again.
func WithThresholds(failures, successes int) Option {
	return func(h *Hub) {
		if failures > 0 {
			h.circuit.failureThreshold = failures
		}
		if successes > 0 {
			h.circuit.successThreshold = successes
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(h *Hub) { h.circuit.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.circuit.now = now }
}

func NewHub(inner messaging.Hub, opts ...Option) *Hub {
	h := &Hub{
		inner: inner,
		circuit: &circuitBreaker{
			state:            circuitClosed,
			failureThreshold: 5,
			successThreshold: 3,
			cooldown:         10 * time.Second,
			now:              time.Now,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Channel(ctx context.Context, address string) (messaging.Channel, error) {
	ch, err := h.inner.Channel(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Channel{Channel: ch, hub: h}, nil
}

// record feeds a call outcome to the circuit. Only transport failures count;
// a rejected peer or unauthorized conversation says nothing about the backend.
func (h *Hub) record(ctx context.Context, op string, err error) {
	switch {
	case err == nil:
		if h.circuit.recordSuccess() {
			h.logger.InfoContext(ctx, "message hub circuit closed", "op", op)
		}
	case errors.Is(err, messaging.ErrNetwork):
		if h.circuit.recordFailure() {
			h.logger.WarnContext(ctx, "message hub circuit opened", "op", op, "error", err)
		}
	}
}

// Channel runs every call of the wrapped channel through the circuit.
type Channel struct {
	messaging.Channel
	hub *Hub
}

func (c *Channel) ListConversations(ctx context.Context) ([]messaging.Conversation, error) {
	return guard(ctx, c.hub, "list conversations", func() ([]messaging.Conversation, error) {
		return c.Channel.ListConversations(ctx)
	})
}

func (c *Channel) ListMessages(ctx context.Context, conv messaging.Conversation) ([]messaging.Message, error) {
	return guard(ctx, c.hub, "list messages", func() ([]messaging.Message, error) {
		return c.Channel.ListMessages(ctx, conv)
	})
}

func (c *Channel) Send(ctx context.Context, conv messaging.Conversation, body string) (messaging.Receipt, error) {
	return guard(ctx, c.hub, "send", func() (messaging.Receipt, error) {
		return c.Channel.Send(ctx, conv, body)
	})
}

func (c *Channel) NewConversation(ctx context.Context, peer string) (messaging.Conversation, error) {
	return guard(ctx, c.hub, "new conversation", func() (messaging.Conversation, error) {
		return c.Channel.NewConversation(ctx, peer)
	})
}

func guard[T any](ctx context.Context, h *Hub, op string, call func() (T, error)) (T, error) {
	if !h.circuit.allow() {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", messaging.ErrNetwork, op, ErrOpen)
	}
	v, err := call()
	h.record(ctx, op, err)
	return v, err
}
