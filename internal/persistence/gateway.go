// Package persistence moves the transcript between memory and a durable
// store. Writes are debounced and always run on the worker pool.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
	"github.com/xiaot623/gogo/chatengine/internal/workerpool"
)

// Store is a durable home for the transcript.
type Store interface {
	Load(ctx context.Context) ([]domain.Turn, error)
	Save(ctx context.Context, turns []domain.Turn) error
	Delete(ctx context.Context) error
}

// Submitter schedules background work.
type Submitter interface {
	Submit(task workerpool.Task) bool
}

// SnapshotFunc returns the turns to persist at the moment a save runs.
type SnapshotFunc func() []domain.Turn

// Options tune the gateway.
type Options struct {
	// SaveInterval is the minimum gap between two non-forced saves.
	SaveInterval time.Duration
	// Timeout bounds every single store call.
	Timeout time.Duration
}

// Gateway schedules loads and saves against a Store.
type Gateway struct {
	store    Store
	pool     Submitter
	snapshot SnapshotFunc
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time

	loadOnce sync.Once
	loaded   []domain.Turn

	mu       sync.Mutex
	lastSave time.Time
}

// NewGateway wires a gateway. snapshot is read inside the worker, never on
// the caller's goroutine.
func NewGateway(store Store, pool Submitter, snapshot SnapshotFunc, opts Options, logger zerolog.Logger) *Gateway {
	if store == nil {
		store = NoopStore{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Gateway{
		store:    store,
		pool:     pool,
		snapshot: snapshot,
		opts:     opts,
		logger:   logger.With().Str("component", "persistence").Logger(),
		now:      time.Now,
	}
}

// LoadOnce fetches the persisted transcript the first time it is called.
// Later calls return the same result. Any failure yields no turns.
func (g *Gateway) LoadOnce(ctx context.Context) []domain.Turn {
	g.loadOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()

		turns, err := g.store.Load(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Msg("load failed, starting with empty transcript")
			return
		}
		g.loaded = turns
		g.logger.Info().Int("turns", len(turns)).Msg("transcript loaded")
	})
	return g.loaded
}

// SaveAsync schedules a save of the current snapshot. Unless force is set,
// saves closer than SaveInterval to the previous one are skipped. It reports
// whether a save was scheduled.
func (g *Gateway) SaveAsync(force bool) bool {
	g.mu.Lock()
	now := g.now()
	if !force && !g.lastSave.IsZero() && now.Sub(g.lastSave) < g.opts.SaveInterval {
		g.mu.Unlock()
		return false
	}
	prev := g.lastSave
	g.lastSave = now
	g.mu.Unlock()

	ok := g.pool.Submit(func(ctx context.Context) {
		if err := g.save(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("background save failed")
		}
	})
	if !ok {
		g.mu.Lock()
		if g.lastSave.Equal(now) {
			g.lastSave = prev
		}
		g.mu.Unlock()
	}
	return ok
}

// Flush saves the current snapshot synchronously.
func (g *Gateway) Flush(ctx context.Context) error {
	g.mu.Lock()
	g.lastSave = g.now()
	g.mu.Unlock()
	return g.save(ctx)
}

// ClearRemote schedules a best-effort delete of the durable copy.
func (g *Gateway) ClearRemote() bool {
	g.mu.Lock()
	g.lastSave = time.Time{}
	g.mu.Unlock()

	return g.pool.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
		if err := g.store.Delete(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("remote clear failed")
		}
	})
}

func (g *Gateway) save(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	var turns []domain.Turn
	if g.snapshot != nil {
		turns = g.snapshot()
	}
	if err := g.store.Save(ctx, turns); err != nil {
		return err
	}
	g.logger.Debug().Int("turns", len(turns)).Msg("transcript saved")
	return nil
}
