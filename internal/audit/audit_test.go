package audit

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestStorePublisherStampsAndLists(t *testing.T) {
	ctx := context.Background()
	pub := NewStorePublisher(NewMemoryStore())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionDIDCreated, Address: "0xalice"}))
	require.NoError(t, pub.Emit(ctx, Event{Action: ActionSchemaCreated, Address: "0xbob"}))

	events, err := pub.List(ctx, "0xalice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionDIDCreated, events[0].Action)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestWorkerDeliversAndFlushes(t *testing.T) {
	sink := &recordingSink{}
	w := NewWorker(sink, 8, nil)
	pub := w.Publisher()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionApprovalResponded}))
	}
	require.Eventually(t, func() bool { return sink.Len() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAsyncPublisherReportsFullBuffer(t *testing.T) {
	w := NewWorker(&recordingSink{}, 1, nil)
	pub := w.Publisher()

	require.NoError(t, pub.Emit(context.Background(), Event{}))
	assert.ErrorIs(t, pub.Emit(context.Background(), Event{}), ErrBufferFull)
}

func TestLogPublisherWritesAction(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionLoginFailed, Address: "0xalice"}))
	assert.Contains(t, buf.String(), `"action":"login_failed"`)
	assert.Contains(t, buf.String(), `"address":"0xalice"`)
}
