package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/xiaot623/gogo/chatengine/internal/adapter/llm"
	"github.com/xiaot623/gogo/chatengine/internal/config"
	"github.com/xiaot623/gogo/chatengine/internal/domain"
	"github.com/xiaot623/gogo/chatengine/internal/workerpool"
)

// minReplyRunes is the shortest reply accepted from a backend.
const minReplyRunes = 2

// Submitter schedules background work.
type Submitter interface {
	Submit(task workerpool.Task) bool
}

// Pipeline calls the backends under a deadline on the worker pool.
type Pipeline struct {
	backends []llm.Backend
	pool     Submitter
	timeout  time.Duration
	retry    config.RetryConfig
	logger   zerolog.Logger
}

// NewPipeline creates a pipeline trying backends in order.
func NewPipeline(backends []llm.Backend, pool Submitter, timeout time.Duration, retryCfg config.RetryConfig, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		backends: backends,
		pool:     pool,
		timeout:  timeout,
		retry:    retryCfg,
		logger:   logger,
	}
}

type generation struct {
	reply   string
	backend string
	err     error
}

// Generate waits at most the configured timeout for a usable reply. The
// backend call runs on the pool; on timeout it is cancelled and its result
// dropped.
func (p *Pipeline) Generate(ctx context.Context, payload []domain.Turn) (string, domain.ReplyOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := make(chan generation, 1)
	ok := p.pool.Submit(func(context.Context) {
		result <- p.callBackends(ctx, payload)
	})
	if !ok {
		return "", domain.OutcomeError, domain.ErrPoolUnavailable
	}

	select {
	case g := <-result:
		if g.err != nil {
			if errors.Is(g.err, context.DeadlineExceeded) {
				return "", domain.OutcomeTimeout, domain.ErrBackendTimeout
			}
			return "", domain.OutcomeError, g.err
		}
		p.logger.Debug().Str("backend", g.backend).Msg("reply generated")
		return g.reply, domain.OutcomeOK, nil
	case <-ctx.Done():
		return "", domain.OutcomeTimeout, domain.ErrBackendTimeout
	}
}

// Retry keeps trying in the background after a degraded reply. onSuccess
// runs on a worker with the first usable reply. It reports whether the retry
// was scheduled.
func (p *Pipeline) Retry(payload []domain.Turn, onSuccess func(reply string)) bool {
	if !p.retry.Enabled {
		return false
	}
	attempts := p.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.retry.Backoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return p.pool.Submit(func(poolCtx context.Context) {
		ctx, cancel := context.WithTimeout(poolCtx, p.retry.Timeout)
		defer cancel()

		attempt := 0
		b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(backoff))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			attempt++
			g := p.callBackends(ctx, payload)
			if g.err != nil {
				p.logger.Debug().Err(g.err).Int("attempt", attempt).Msg("background retry failed")
				return retry.RetryableError(g.err)
			}
			p.logger.Info().Str("backend", g.backend).Int("attempt", attempt).Msg("background retry succeeded")
			onSuccess(g.reply)
			return nil
		})
		if err != nil {
			p.logger.Warn().Err(err).Int("attempts", attempt).Msg("background retry gave up")
		}
	})
}

// callBackends tries each backend in order under ctx.
func (p *Pipeline) callBackends(ctx context.Context, payload []domain.Turn) generation {
	lastErr := domain.ErrNoBackend
	for _, b := range p.backends {
		if err := ctx.Err(); err != nil {
			return generation{err: err}
		}
		reply, err := b.Generate(ctx, payload)
		if err != nil {
			p.logger.Debug().Err(err).Str("backend", b.Name()).Msg("backend failed")
			lastErr = err
			continue
		}
		reply = strings.TrimSpace(reply)
		if utf8.RuneCountInString(reply) < minReplyRunes {
			lastErr = domain.ErrReplyTooShort
			continue
		}
		return generation{reply: reply, backend: b.Name()}
	}
	if err := ctx.Err(); err != nil {
		return generation{err: err}
	}
	return generation{err: lastErr}
}
