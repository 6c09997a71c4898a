package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/yourcaryourway/support-chat/internal/cache"
	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/handler"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/pkg/database"
	pkglog "github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
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
	logCfg.ServiceName = "support-api"
	pkglog.Init(logCfg)
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	chatRepo := repository.NewGormChatRepository(db)

	// Listing cache
	var sessionCache cache.SessionCache = cache.Noop{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisSessionCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		sessionCache = redisCache
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("redis cache connected")
	}
	defer sessionCache.Close()

	querySvc := service.NewSessionQueryService(chatRepo, sessionCache, cfg.Cache.TTL)

	// Drop cached listings as soon as the relay reports a change
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pubsub")
	}
	defer bus.Close()
	go func() {
		if err := querySvc.InvalidateOnEvents(pkglog.WithLogger(ctx, logger), bus); err != nil {
			logger.Error().Err(err).Msg("cache invalidation stopped")
		}
	}()

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	handler.NewHTTPHandler(querySvc).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("support api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down support api")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("support api stopped")
}
