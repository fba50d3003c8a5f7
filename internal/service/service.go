// Package service implements the conversation engine: one transcript shared
// by every caller, fast-path commands and a deadline-bound generation
// pipeline with best-effort persistence.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/adapter/llm"
	"github.com/xiaot623/gogo/chatengine/internal/config"
	"github.com/xiaot623/gogo/chatengine/internal/domain"
	"github.com/xiaot623/gogo/chatengine/internal/persistence"
	"github.com/xiaot623/gogo/chatengine/internal/transcript"
	"github.com/xiaot623/gogo/chatengine/internal/workerpool"
)

// Canned replies.
const (
	ClearReply    = "Đã xóa lịch sử chat."
	DegradedReply = "Xin lỗi, hiện tại tôi không truy cập được mô-đun trả lời nhanh. Bạn có thể thử lại hoặc chờ một chút."
	BusyReply     = "Hệ thống đang bận, vui lòng thử lại sau ít phút."
)

// Classifier decides how a message is handled.
type Classifier interface {
	Classify(ctx context.Context, message string) (domain.CommandKind, error)
}

// Service is the conversation engine.
type Service struct {
	transcript *transcript.Store
	gateway    *persistence.Gateway
	classifier Classifier
	pipeline   *Pipeline
	pool       *workerpool.Pool
	clock      *Clock
	config     *config.Config
	logger     zerolog.Logger
	durable    persistence.Store

	exchanges atomic.Int64
	outcome   atomic.Value // domain.ReplyOutcome of the last handled message
}

// New wires an engine. durable may be nil for a memory-only engine.
func New(cfg *config.Config, durable persistence.Store, backends []llm.Backend, classifier Classifier, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "engine").Logger()

	pool := workerpool.New("engine", cfg.Workers.Size, cfg.Workers.Queue, logger)
	clock := NewClock(cfg.Engine.Timezone, cfg.Engine.Location, logger)
	store := transcript.NewStore(transcript.NewRetention(cfg.Engine.MaxMessages), transcript.WithClock(clock.Now))
	gateway := persistence.NewGateway(durable, pool, func() []domain.Turn {
		return store.Snapshot(store.MaxMessages())
	}, persistence.Options{
		SaveInterval: cfg.Storage.SaveInterval,
		Timeout:      cfg.Storage.Timeout,
	}, logger)

	return &Service{
		transcript: store,
		gateway:    gateway,
		classifier: classifier,
		pipeline:   NewPipeline(backends, pool, cfg.Generation.Timeout, cfg.Generation.Retry, logger),
		pool:       pool,
		clock:      clock,
		config:     cfg,
		logger:     logger,
		durable:    durable,
	}
}

// Preload hydrates the transcript from the durable store once. Failures
// leave the transcript empty.
func (s *Service) Preload(ctx context.Context) {
	if turns := s.gateway.LoadOnce(ctx); len(turns) > 0 {
		s.transcript.Hydrate(turns)
	}
}

// Handle answers one user message. Only invalid input yields an error; every
// other path returns a reply.
func (s *Service) Handle(ctx context.Context, text string) (reply string, err error) {
	message := strings.TrimSpace(text)
	if err := s.validate(message); err != nil {
		return "", err
	}

	requestID := "req_" + uuid.New().String()[:8]
	logger := s.logger.With().Str("request_id", requestID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("handle panicked")
			reply, err = s.recordBusy(message), nil
		}
	}()

	kind, err := s.classifier.Classify(ctx, message)
	if err != nil {
		logger.Error().Err(err).Msg("classify failed")
		return s.recordBusy(message), nil
	}

	switch kind {
	case domain.CommandClear:
		s.Clear(ctx)
		s.outcome.Store(domain.OutcomeCommand)
		return ClearReply, nil
	case domain.CommandTimeQuery:
		s.outcome.Store(domain.OutcomeCommand)
		return s.answerTime(message), nil
	default:
		return s.generate(ctx, logger, message), nil
	}
}

func (s *Service) validate(message string) error {
	if message == "" {
		return domain.ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(message); n > s.config.Engine.MaxInputLength {
		return fmt.Errorf("%w (%d > %d)", domain.ErrMessageTooLong, n, s.config.Engine.MaxInputLength)
	}
	return nil
}

func (s *Service) answerTime(message string) string {
	info := s.clock.Info()
	reply := fmt.Sprintf("Hiện tại là %s tại %s.", info.Full, info.Location)
	s.transcript.AppendPair(
		domain.NewTurn(domain.RoleUser, message, info.At),
		domain.NewTurn(domain.RoleAssistant, reply, info.At),
	)
	s.gateway.SaveAsync(false)
	return reply
}

func (s *Service) generate(ctx context.Context, logger zerolog.Logger, message string) string {
	start := time.Now()
	s.ensureSystemTurn()

	user := domain.NewTurn(domain.RoleUser, message, s.clock.Now())
	payload := s.transcript.Payload(user, s.config.Engine.MaxInputMessages)

	reply, outcome, err := s.pipeline.Generate(ctx, payload)
	s.outcome.Store(outcome)
	if outcome != domain.OutcomeOK {
		logger.Warn().Err(err).Str("outcome", string(outcome)).Msg("generation degraded")
		reply = DegradedReply
	}

	// The store restamps both turns at append time.
	s.transcript.AppendPair(user, domain.NewTurn(domain.RoleAssistant, reply, s.clock.Now()))
	s.exchanges.Add(1)
	s.gateway.SaveAsync(false)

	if outcome != domain.OutcomeOK {
		s.pipeline.Retry(payload, func(corrected string) {
			now := s.clock.Now()
			s.transcript.AppendPair(
				domain.NewTurn(domain.RoleUser, message, now),
				domain.NewTurn(domain.RoleAssistant, corrected, now),
			)
			s.gateway.SaveAsync(true)
		})
	}

	deadline := s.config.Generation.Timeout
	if elapsed := time.Since(start); float64(elapsed) > float64(deadline)*s.config.Generation.SlowFactor {
		logger.Warn().Dur("elapsed", elapsed).Dur("deadline", deadline).Msg("slow response")
	}
	return reply
}

// ensureSystemTurn installs a fresh system turn when none exists or every
// SystemRefreshPeriod exchanges.
func (s *Service) ensureSystemTurn() {
	period := int64(s.config.Engine.SystemRefreshPeriod)
	_, ok := s.transcript.SystemTurn()
	if ok && (period <= 0 || s.exchanges.Load()%period != 0) {
		return
	}
	info := s.clock.Info()
	s.transcript.ReplaceSystemTurn(domain.NewTurn(
		domain.RoleSystem,
		fmt.Sprintf("Bạn là trợ lý AI tại %s. Thời gian hiện tại: %s.", info.Location, info.Full),
		info.At,
	))
}

// recordBusy keeps the lone user turn and schedules a save. It never panics.
func (s *Service) recordBusy(message string) (reply string) {
	reply = BusyReply
	s.outcome.Store(domain.OutcomeInternal)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("recording user turn failed")
		}
	}()
	s.transcript.Append(domain.NewTurn(domain.RoleUser, message, s.clock.Now()))
	s.gateway.SaveAsync(false)
	return reply
}

// History returns the last limit turns, or the configured default when
// limit is not positive.
func (s *Service) History(limit int) []domain.Turn {
	if limit <= 0 {
		limit = s.config.Engine.HistoryLimit
	}
	return s.transcript.Snapshot(limit)
}

// Clear wipes the transcript and schedules a remote delete.
func (s *Service) Clear(ctx context.Context) {
	s.transcript.Clear()
	s.exchanges.Store(0)
	if !s.gateway.ClearRemote() {
		s.logger.Warn().Msg("remote clear not scheduled")
	}
}

// Status reports the transcript size, the local time, queued background
// work and how the last message was answered.
func (s *Service) Status() domain.Status {
	last, _ := s.outcome.Load().(domain.ReplyOutcome)
	return domain.Status{
		TurnCount:    s.transcript.Len(),
		NowLocal:     s.clock.Now(),
		PendingTasks: s.pool.Pending(),
		LastOutcome:  last,
	}
}

// Ping checks the durable store when it supports a health check.
func (s *Service) Ping(ctx context.Context) error {
	pinger, ok := s.durable.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("durable store: %w", err)
	}
	return nil
}

// Close drains background work and writes a final snapshot.
func (s *Service) Close(ctx context.Context) error {
	if err := s.pool.Close(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("worker pool did not drain")
	}
	if err := s.gateway.Flush(ctx); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}
