package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourcaryourway/support-chat/internal/archive"
	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/handler"
	"github.com/yourcaryourway/support-chat/internal/hub"
	"github.com/yourcaryourway/support-chat/internal/idgen"
	"github.com/yourcaryourway/support-chat/internal/metrics"
	"github.com/yourcaryourway/support-chat/internal/registry"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/pkg/database"
	pkglog "github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
	"github.com/yourcaryourway/support-chat/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	logCfg := cfg.Log
	logCfg.ServiceName = "support-relay"
	pkglog.Init(logCfg)
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Datastore handle, shared by reference
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	chatRepo := repository.NewGormChatRepository(db)

	// Lifecycle event publisher
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pubsub")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub ready")

	// Session owner registry
	var reg registry.Registry = registry.NopRegistry{}
	if cfg.Registry.Enabled {
		redisReg, err := registry.NewRedisRegistry(cfg.Redis, cfg.Registry, cfg.Server.AdvertiseAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis registry")
		}
		reg = redisReg
		logger.Info().Str("address", cfg.Redis.Address).Msg("session registry connected")
	}
	defer reg.Close()

	// Transcript archive
	var archiver archive.Archiver = archive.Nop{}
	if cfg.Archive.Enabled {
		store, err := storage.New(ctx, cfg.Archive.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize transcript storage")
		}
		archiver = archive.NewStorageArchiver(store, cfg.Archive.Prefix)
		logger.Info().Str("driver", cfg.Archive.Storage.Driver).Msg("transcript archive enabled")
	}

	metrics.MustRegister()

	wsHub := hub.NewHub()
	relaySvc := service.NewRelayService(
		wsHub,
		chatRepo,
		idgen.NewUUIDGenerator(),
		idgen.NewULIDGenerator(),
		bus,
		reg,
		archiver,
		cfg.Server.AdvertiseAddress,
	)
	if err := relaySvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start relay service")
	}
	defer relaySvc.Stop()

	wsHandler := handler.NewWSHandler(wsHub, relaySvc, cfg.WebSocket)
	go wsHandler.Run(ctx)

	// Setup HTTP server
	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           pkglog.HTTPMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("support relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down support relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	logger.Info().Msg("support relay stopped")
}
