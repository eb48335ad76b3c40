package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zwubman/software-company-sub002/internal/cache"
	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/internal/events"
	"github.com/Zwubman/software-company-sub002/internal/handler"
	"github.com/Zwubman/software-company-sub002/internal/hub"
	"github.com/Zwubman/software-company-sub002/internal/identity"
	"github.com/Zwubman/software-company-sub002/internal/registry"
	"github.com/Zwubman/software-company-sub002/internal/service"
	"github.com/Zwubman/software-company-sub002/internal/store"
	"github.com/Zwubman/software-company-sub002/pkg/database"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting support chat service")

	if cfg.Identity.JWTSecret == "" {
		l.Fatal().Msg("identity.jwt_secret is required")
	}
	validator := identity.NewJWTValidator(cfg.Identity.JWTSecret, cfg.Identity.Issuer)

	// Message store
	var messageStore store.MessageStore
	if cfg.Database.Driver == "memory" {
		messageStore = store.NewMemoryStore()
		l.Warn().Msg("using in-memory message store, messages will not survive restarts")
	} else {
		db, err := database.New(&cfg.Database)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to database")
		}
		gormStore := store.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			l.Fatal().Err(err).Msg("failed to migrate database")
		}
		messageStore = gormStore
		l.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")
	}

	// Presence registry
	advertise := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	reg, err := registry.NewRedisRegistry(cfg.Redis, advertise)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize redis registry")
	}
	defer reg.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	// History cache
	var historyCache cache.HistoryCache
	historyCache, err = cache.NewRedisHistoryCache(cfg.Redis)
	if err != nil {
		l.Warn().Err(err).Msg("history cache unavailable, serving uncached")
		historyCache = cache.NewNoopHistoryCache()
	}
	defer historyCache.Close()

	// Event stream
	var publisher events.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to initialize kafka publisher")
		}
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	} else {
		publisher = events.NewNoopPublisher()
		l.Info().Msg("kafka brokers not configured, event publishing disabled")
	}

	// Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	// Services
	chatSvc := service.NewChatService(wsHub, messageStore, validator, publisher, reg, cfg.Chat)
	historySvc := service.NewHistoryService(messageStore, historyCache, cfg.Chat.HistoryCacheTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := chatSvc.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer chatSvc.Stop()

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(log.GinMiddleware(l), gin.Recovery())

	wsHandler := handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(historySvc, validator, reg, wsHandler, cfg.Chat.HistoryPageMax)
	httpHandler.RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("stopped")
}
