package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
	"github.com/xiaot623/gogo/chatengine/internal/workerpool"
)

type memoryStore struct {
	mu      sync.Mutex
	turns   []domain.Turn
	saves   int
	deletes int
	loads   int
	loadErr error
	delay   time.Duration
}

func (m *memoryStore) Load(ctx context.Context) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.Turn(nil), m.turns...), nil
}

func (m *memoryStore) Save(ctx context.Context, turns []domain.Turn) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.turns = append([]domain.Turn(nil), turns...)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	m.turns = nil
	return nil
}

func (m *memoryStore) counts() (saves, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.deletes
}

func newGateway(t *testing.T, store Store, snapshot SnapshotFunc, interval time.Duration) *Gateway {
	t.Helper()
	pool := workerpool.New("persist-test", 1, 8, zerolog.Nop())
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	return NewGateway(store, pool, snapshot, Options{SaveInterval: interval, Timeout: time.Second}, zerolog.Nop())
}

func sampleTurns() []domain.Turn {
	now := time.Now()
	return []domain.Turn{
		domain.NewTurn(domain.RoleUser, "xin chào", now),
		domain.NewTurn(domain.RoleAssistant, "chào bạn", now),
	}
}

func TestGatewaySaveAsyncDebounces(t *testing.T) {
	store := &memoryStore{}
	g := newGateway(t, store, func() []domain.Turn { return sampleTurns() }, time.Hour)

	assert.True(t, g.SaveAsync(false))
	assert.False(t, g.SaveAsync(false))
	assert.True(t, g.SaveAsync(true))

	assert.Eventually(t, func() bool {
		saves, _ := store.counts()
		return saves == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewaySaveAsyncDoesNotBlockCaller(t *testing.T) {
	store := &memoryStore{delay: 300 * time.Millisecond}
	g := newGateway(t, store, func() []domain.Turn { return sampleTurns() }, 0)

	start := time.Now()
	require.True(t, g.SaveAsync(true))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGatewayLoadOnce(t *testing.T) {
	store := &memoryStore{turns: sampleTurns()}
	g := newGateway(t, store, nil, 0)

	first := g.LoadOnce(context.Background())
	second := g.LoadOnce(context.Background())

	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.loads)
}

func TestGatewayLoadFailureYieldsEmpty(t *testing.T) {
	store := &memoryStore{loadErr: errors.New("unreachable")}
	g := newGateway(t, store, nil, 0)

	assert.Empty(t, g.LoadOnce(context.Background()))
}

func TestGatewayFlushAndClearRemote(t *testing.T) {
	store := &memoryStore{}
	g := newGateway(t, store, func() []domain.Turn { return sampleTurns() }, time.Hour)

	require.NoError(t, g.Flush(context.Background()))
	assert.Len(t, store.turns, 2)

	require.True(t, g.ClearRemote())
	assert.Eventually(t, func() bool {
		_, deletes := store.counts()
		return deletes == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A clear resets the debounce window.
	assert.True(t, g.SaveAsync(false))
}

func TestNoopStore(t *testing.T) {
	var s NoopStore
	turns, err := s.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, turns)
	assert.NoError(t, s.Save(context.Background(), sampleTurns()))
	assert.NoError(t, s.Delete(context.Background()))
}

// hangingStore never answers on its own; calls end only when ctx does.
type hangingStore struct {
	errs chan error
}

func (h *hangingStore) Load(ctx context.Context) ([]domain.Turn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *hangingStore) Save(ctx context.Context, _ []domain.Turn) error {
	<-ctx.Done()
	h.errs <- ctx.Err()
	return ctx.Err()
}

func (h *hangingStore) Delete(ctx context.Context) error {
	<-ctx.Done()
	h.errs <- ctx.Err()
	return ctx.Err()
}

func TestGatewayTimeoutReleasesWorker(t *testing.T) {
	store := &hangingStore{errs: make(chan error, 8)}
	pool := workerpool.New("persist-test", 1, 8, zerolog.Nop())
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	g := NewGateway(store, pool, sampleTurns, Options{Timeout: 50 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	err := g.Flush(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	<-store.errs

	require.True(t, g.SaveAsync(true))
	require.True(t, g.ClearRemote())
	next := make(chan struct{})
	require.True(t, pool.Submit(func(context.Context) { close(next) }))

	select {
	case <-next:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stayed blocked on the durable store")
	}
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-store.errs, context.DeadlineExceeded)
	}
}
