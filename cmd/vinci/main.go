package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vinci/internal/app/services/chat"
	"vinci/internal/app/services/notify"
	domainconv "vinci/internal/domain/conversation"
	domaininterest "vinci/internal/domain/interest"
	domainnotif "vinci/internal/domain/notification"
	domainpost "vinci/internal/domain/post"
	"vinci/internal/infra/broker/kafka"
	"vinci/internal/infra/config"
	mongodb "vinci/internal/infra/db/mongo"
	ginserver "vinci/internal/infra/http/gin"
	"vinci/internal/infra/obs"
	"vinci/internal/infra/posts"
	"vinci/internal/infra/realtime"
	"vinci/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Config{Env: "dev", HTTPAddr: ":8080", ShutdownTimeout: 5 * time.Second}
	}
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
	}

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	fixturesPath := getenv("POST_FIXTURES", "")
	if fixturesPath == "" {
		fixturesPath = defaultPostFixturesPath()
	}
	if app.postSeed != nil {
		if err := loadPostFixtures(fixturesPath, app.postSeed, logger); err != nil {
			logger.Warn("post fixtures load failed", "error", err, "path", fixturesPath)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	ready    func(ctx context.Context) error
	postSeed *memory.PostStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var (
		conversations domainconv.Repository
		messages      domainconv.MessageRepository
		interests     domaininterest.Repository
		notifications domainnotif.Repository
		postStore     domainpost.Store
		memoryPosts   *memory.PostStore
		closers       []func()
		ready         = func(ctx context.Context) error { return nil }
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("mongo connect: %w", err)
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(closeCtx); err != nil {
				logger.Error("mongo disconnect failed", "error", err)
			}
		})
		if err := mongodb.EnsureIndexes(ctx, client.DB); err != nil {
			return application{}, cleanup, fmt.Errorf("mongo indexes: %w", err)
		}
		conversations = mongodb.NewConversationRepository(client.DB)
		messages = mongodb.NewMessageRepository(client.DB)
		interests = mongodb.NewInterestRepository(client.DB)
		notifications = mongodb.NewNotificationRepository(client.DB)
		ready = client.Ping
		logger.Info("storage ready", "backend", "mongo", "database", cfg.MongoDB)
	} else {
		conversations = memory.NewConversationRepository()
		messages = memory.NewMessageRepository()
		interests = memory.NewInterestRepository()
		notifications = memory.NewNotificationRepository()
		logger.Info("storage ready", "backend", "memory")
	}

	if cfg.PostServiceURL != "" {
		postStore = &posts.Client{
			BaseURL: cfg.PostServiceURL,
			Client:  &http.Client{Timeout: 5 * time.Second},
			Logger:  logger,
		}
		logger.Info("post store ready", "backend", "http", "url", cfg.PostServiceURL)
	} else {
		memoryPosts = memory.NewPostStore()
		postStore = memoryPosts
		logger.Info("post store ready", "backend", "memory")
	}

	hub := realtime.NewHub()
	fanout := &realtime.Fanout{Hub: hub, Topic: cfg.KafkaTopic, Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return application{}, cleanup, fmt.Errorf("kafka connect: %w", err)
		}
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka close failed", "error", err)
			}
		})
		fanout.Mirror = producer
		logger.Info("realtime mirror ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	notifyService := &notify.Service{
		Ledgers: notifications,
		Fanout:  fanout,
		Logger:  logger,
	}
	snapshots := &chat.SnapshotRefresher{
		Interests: interests,
		Posts:     postStore,
		Fanout:    fanout,
		Logger:    logger,
	}
	chatService := &chat.Service{
		Conversations: conversations,
		Messages:      messages,
		Interests:     interests,
		Posts:         postStore,
		Notifications: notifyService,
		Snapshots:     snapshots,
		Fanout:        fanout,
		Logger:        logger,
	}

	identity := ginserver.IdentityMiddleware{}
	return application{
		handlers: ginserver.Handlers{
			Conversations:      &ginserver.ConversationHandler{Chat: chatService, Logger: logger},
			Notifications:      &ginserver.NotificationHandler{Notify: notifyService, Logger: logger},
			Realtime:           &ginserver.RealtimeHandler{Hub: hub, Logger: logger},
			IdentityMiddleware: identity.Handle,
		},
		ready:    ready,
		postSeed: memoryPosts,
	}, cleanup, nil
}

type postFixture struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func loadPostFixtures(path string, store *memory.PostStore, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("post fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("post fixtures file empty", "path", path)
		return nil
	}

	var fixtures []postFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		if fx.ID == "" || fx.AuthorID == "" {
			logger.Error("fixture invalid", "post_id", fx.ID)
			continue
		}
		store.Seed(domainpost.Post{
			ID:       fx.ID,
			AuthorID: fx.AuthorID,
			Title:    fx.Title,
			Category: fx.Category,
		})
		logger.Info("post fixture imported", "post_id", fx.ID)
	}
	return nil
}

func defaultPostFixturesPath() string {
	return filepath.Join("data", "posts.json")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
