package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/assistant-relay/internal/api"
	"github.com/wuwenbin0122/assistant-relay/internal/assistant"
	"github.com/wuwenbin0122/assistant-relay/internal/chat"
	"github.com/wuwenbin0122/assistant-relay/internal/journal"
	"github.com/wuwenbin0122/assistant-relay/internal/limiter"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	recorder, closeJournal := openJournal(ctx, cfg.Journal, logger)
	defer closeJournal()

	registry, err := chat.RegistryFromConfig(cfg.Assistants)
	if err != nil {
		logger.Fatal("assistants: invalid configuration", zap.Error(err))
	}

	upstreamLimiter := limiter.New(cfg.Assistants.MaxConcurrency)
	client := assistant.NewLimitedClient(
		assistant.NewOpenAIClient(assistant.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.HTTPTimeout,
		}, logger.Named("assistant")),
		upstreamLimiter,
	)

	poller := chat.NewPoller(client, cfg.Polling.Interval, cfg.Polling.MaxWait, logger)
	chatService := chat.NewService(client, registry, poller, recorder, logger)

	router := setupRouter(api.NewHandler(chatService, upstreamLimiter, logger), logger)

	// No write timeout: a request lasts as long as its run takes upstream.
	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.Bool("variants", registry.MultiVariant()),
			zap.Int64("upstream_concurrency", upstreamLimiter.Capacity()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func setupRouter(handler *api.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())

	handler.RegisterRoutes(router)

	return router
}

// openJournal connects whichever run journals are configured. Journal stores
// are optional; a store that cannot be reached is logged and skipped.
func openJournal(ctx context.Context, cfg utils.JournalConfig, logger *zap.Logger) (journal.Recorder, func()) {
	if !cfg.Enabled() {
		return journal.Nop{}, func() {}
	}

	var (
		recorders journal.Multi
		closers   []func()
	)

	if cfg.PostgresDSN != "" {
		store, err := journal.NewPostgres(ctx, cfg)
		if err == nil {
			if err = store.Ping(ctx); err == nil {
				err = store.EnsureSchema(ctx)
			}
			if err != nil {
				store.Close()
			}
		}

		if err != nil {
			logger.Warn("journal: postgres unavailable", zap.Error(err))
		} else {
			recorders = append(recorders, store)
			closers = append(closers, store.Close)
		}
	}

	if cfg.MongoURI != "" {
		store, err := journal.NewMongo(ctx, cfg)
		if err != nil {
			logger.Warn("journal: mongo unavailable", zap.Error(err))
		} else if err := store.EnsureCollections(ctx); err != nil {
			logger.Warn("journal: mongo collections", zap.Error(err))
			_ = store.Close(context.Background())
		} else {
			recorders = append(recorders, store)
			closers = append(closers, func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Warn("journal: mongo close", zap.Error(err))
				}
			})
		}
	}

	if len(recorders) == 0 {
		return journal.Nop{}, func() {}
	}

	return recorders, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
