package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/adapter/llm"
	"github.com/xiaot623/gogo/chatengine/internal/classifier"
	"github.com/xiaot623/gogo/chatengine/internal/config"
	"github.com/xiaot623/gogo/chatengine/internal/domain"
	"github.com/xiaot623/gogo/chatengine/internal/persistence"
)

var errBackendDown = errors.New("backend down")

// scriptedBackend answers from a script; once exhausted it repeats the last step.
type scriptedBackend struct {
	name  string
	mu    sync.Mutex
	steps []step
	calls atomic.Int32
}

type step struct {
	reply string
	err   error
	delay time.Duration
}

func newBackend(name string, steps ...step) *scriptedBackend {
	return &scriptedBackend{name: name, steps: steps}
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Generate(ctx context.Context, payload []domain.Turn) (string, error) {
	n := int(b.calls.Add(1)) - 1
	b.mu.Lock()
	st := b.steps[len(b.steps)-1]
	if n < len(b.steps) {
		st = b.steps[n]
	}
	b.mu.Unlock()

	if st.delay > 0 {
		select {
		case <-time.After(st.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return st.reply, st.err
}

type memoryStore struct {
	mu    sync.Mutex
	turns []domain.Turn
	saves int
}

func (m *memoryStore) Load(context.Context) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Turn(nil), m.turns...), nil
}

func (m *memoryStore) Save(_ context.Context, turns []domain.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.turns = append([]domain.Turn(nil), turns...)
	return nil
}

func (m *memoryStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	return nil
}

func (m *memoryStore) snapshot() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Turn(nil), m.turns...)
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			MaxMessages:         80,
			MaxInputMessages:    3,
			MaxInputLength:      1500,
			Timezone:            "Asia/Ho_Chi_Minh",
			Location:            "Khánh Hòa, Việt Nam",
			SystemRefreshPeriod: 5,
			HistoryLimit:        30,
		},
		Generation: config.GenerationConfig{
			Timeout:    200 * time.Millisecond,
			SlowFactor: 1.3,
		},
		Storage: config.StorageConfig{
			Timeout: time.Second,
		},
		Workers: config.WorkersConfig{Size: 3, Queue: 32},
	}
}

func newTestService(t *testing.T, cfg *config.Config, durable persistence.Store, backends ...llm.Backend) *Service {
	t.Helper()
	engine, err := classifier.NewEngine(context.Background(), classifier.DefaultPolicy)
	require.NoError(t, err)

	svc := New(cfg, durable, backends, engine, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc
}

func assertWellFormed(t *testing.T, turns []domain.Turn) {
	t.Helper()
	systems := 0
	for i, turn := range turns {
		switch turn.Role {
		case domain.RoleSystem:
			systems++
			require.Equal(t, 0, i, "system turn must lead the transcript")
		case domain.RoleUser:
			require.Less(t, i+1, len(turns), "user turn %d has no reply", i)
			require.Equal(t, domain.RoleAssistant, turns[i+1].Role, "user turn %d not followed by its reply", i)
		case domain.RoleAssistant:
			require.Greater(t, i, 0)
			require.Equal(t, domain.RoleUser, turns[i-1].Role, "assistant turn %d has no user turn", i)
		}
	}
	require.LessOrEqual(t, systems, 1)
}
