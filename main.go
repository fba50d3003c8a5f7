package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/adapter/llm"
	"github.com/xiaot623/gogo/chatengine/internal/adapter/storage"
	"github.com/xiaot623/gogo/chatengine/internal/classifier"
	"github.com/xiaot623/gogo/chatengine/internal/config"
	"github.com/xiaot623/gogo/chatengine/internal/logging"
	"github.com/xiaot623/gogo/chatengine/internal/persistence"
	"github.com/xiaot623/gogo/chatengine/internal/repository"
	"github.com/xiaot623/gogo/chatengine/internal/service"
	handler "github.com/xiaot623/gogo/chatengine/internal/transport/http"
	"github.com/xiaot623/gogo/chatengine/internal/transport/rpc"
	"github.com/xiaot623/gogo/chatengine/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logger.Info().
		Int("port", cfg.Server.Port).
		Str("storage", cfg.StorageDriver()).
		Strs("backends", cfg.LLM.Backends).
		Bool("mock", cfg.MockMode()).
		Msg("starting chat engine")

	ctx := context.Background()

	// Initialize durable store
	durable, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer closeStore()

	// Initialize generation backends
	backends, err := llm.NewBackends(cfg, logging.Component(logger, "llm"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize backends")
	}

	// Initialize command classifier
	commands, err := classifier.NewEngineFromFile(ctx, cfg.Classifier.PolicyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize classifier")
	}

	// Initialize service
	svc := service.New(cfg, durable, backends, commands, logging.Component(logger, "engine"))
	svc.Preload(ctx)

	wsServer := ws.NewServer(cfg.WebSocket, svc, logging.Component(logger, "ws"))
	httpServer := handler.NewServer(svc, logging.Component(logger, "http"), wsServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start http server")
		}
	}()
	logger.Info().Int("port", cfg.Server.Port).Msg("http api started")

	var rpcServer *rpc.Server
	if cfg.Server.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc, logging.Component(logger, "rpc"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize rpc server")
		}
		if err := rpcServer.Listen(cfg.Server.RPCAddr); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Server.RPCAddr).Msg("failed to listen for rpc")
		}
		go func() {
			if err := rpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("rpc server stopped")
			}
		}()
		logger.Info().Str("addr", rpcServer.Addr().String()).Msg("rpc api started")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat engine")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to shutdown http server gracefully")
	}
	wsServer.Close()
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to shutdown rpc server gracefully")
		}
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("final save failed")
	}

	logger.Info().Msg("chat engine stopped")
}

// openStore picks the durable store for the configured driver. The returned
// close func is always safe to call.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (persistence.Store, func(), error) {
	switch cfg.StorageDriver() {
	case config.StorageSQLite:
		store, err := repository.NewSQLiteStore(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("path", cfg.Storage.SQLitePath).Msg("using sqlite store")
		return store, func() { _ = store.Close() }, nil
	case config.StorageHTTP:
		loc := service.NewClock(cfg.Engine.Timezone, cfg.Engine.Location, logger).Location()
		client, err := storage.NewClient(cfg.Storage.URL, cfg.Storage.APIKey, cfg.Storage.Timeout, loc)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("url", cfg.Storage.URL).Msg("using remote storage api")
		return client, func() {}, nil
	default:
		logger.Info().Msg("persistence disabled")
		return persistence.NoopStore{}, func() {}, nil
	}
}
