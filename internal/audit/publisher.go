package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher accepts audit events. Implementations decide whether delivery is
// synchronous.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAddress(ctx context.Context, address string) ([]Event, error)
}

// StorePublisher is an append-only publisher backed by a Store so tests can
// swap sinks easily.
type StorePublisher struct {
	store Store
	now   func() time.Time
}

func NewStorePublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store, now: time.Now}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	return p.store.Append(ctx, event)
}

func (p *StorePublisher) List(ctx context.Context, address string) ([]Event, error) {
	return p.store.ListByAddress(ctx, address)
}

// MemoryStore keeps events per address.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]Event)}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Address] = append(s.events[event.Address], event)
	return nil
}

func (s *MemoryStore) ListByAddress(_ context.Context, address string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[address]...), nil
}

// LogPublisher writes events to the structured log. Used when no audit
// stream is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"address", event.Address,
		"peer", event.Peer,
		"subject", event.Subject,
		"data_type", event.DataType,
		"request_id", event.RequestID,
	)
	return nil
}
