package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
	"github.com/TelesNascimento25/Checkout-service/internal/storage/memory"
)

// --- Mock implementations ---

type mockWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// --- Helpers ---

func seedEvents(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := range n {
		require.NoError(t, store.RecordEvent(ctx, basket.Event{
			ID:         "00000000-0000-0000-0000-00000000000" + string(rune('0'+i)),
			Type:       basket.EventCheckedOut,
			BasketID:   int64(i + 1),
			Payload:    []byte(`{"status":"CHECKED_OUT"}`),
			OccurredAt: time.Now(),
		}))
	}
}

// --- Tests ---

func TestPublishPending(t *testing.T) {
	store := memory.NewStore()
	seedEvents(t, store, 3)
	w := &mockWriter{}
	p := NewPoller(store, w, time.Second, 2)
	ctx := context.Background()

	n, err := p.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.PublishPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, w.msgs, 3)
	msg := w.msgs[0]
	assert.Equal(t, "1", string(msg.Key))
	assert.JSONEq(t, `{"status":"CHECKED_OUT"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[1].Key)
	assert.Equal(t, string(basket.EventCheckedOut), string(msg.Headers[1].Value))
}

func TestPublishPending_WriteFailureKeepsEvents(t *testing.T) {
	store := memory.NewStore()
	seedEvents(t, store, 1)
	w := &mockWriter{err: errors.New("broker unavailable")}
	p := NewPoller(store, w, time.Second, 10)
	ctx := context.Background()

	_, err := p.PublishPending(ctx)
	require.ErrorIs(t, err, w.err)

	pending, err := store.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	w.err = nil
	n, err := p.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun(t *testing.T) {
	store := memory.NewStore()
	seedEvents(t, store, 2)
	w := &mockWriter{}
	p := NewPoller(store, w, 10*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return w.count() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
