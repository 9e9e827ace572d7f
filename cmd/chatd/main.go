package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fathima-sithara/marketplace-chat/internal/auth"
	"github.com/fathima-sithara/marketplace-chat/internal/cache"
	cfgpkg "github.com/fathima-sithara/marketplace-chat/internal/config"
	"github.com/fathima-sithara/marketplace-chat/internal/events"
	"github.com/fathima-sithara/marketplace-chat/internal/logger"
	"github.com/fathima-sithara/marketplace-chat/internal/media"
	"github.com/fathima-sithara/marketplace-chat/internal/notify"
	"github.com/fathima-sithara/marketplace-chat/internal/repository"
	"github.com/fathima-sithara/marketplace-chat/internal/server"
	"github.com/fathima-sithara/marketplace-chat/internal/storage"
	"github.com/fathima-sithara/marketplace-chat/internal/ws"
)

func main() {
	_ = godotenv.Load() // load .env if present

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo
	mc, err := repository.NewMongoClient(ctx, cfg)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	repo := repository.NewMongoRepository(mc.Database(cfg.Mongo.Database), cfg)

	// Redis
	unread, err := cache.NewRedis(cfg)
	if err != nil {
		zlog.Fatalw("redis init", "err", err)
	}
	defer unread.Close()

	// Kafka
	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		cons := notify.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, cfg.Kafka.GroupID, repo, zlog)
		go func() {
			if err := cons.Start(ctx); err != nil && ctx.Err() == nil {
				zlog.Errorw("notification consumer stopped", "err", err)
			}
		}()
		defer cons.Close()
	}
	defer pub.Close()

	// S3
	store, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.Endpoint, cfg.S3.PublicRead)
	if err != nil {
		zlog.Fatalw("s3 init", "err", err)
	}
	mediaSvc := media.NewService(store, cfg.Upload.MaxBytes)

	verifier, err := auth.NewVerifier(cfg.App.JWTSecret)
	if err != nil {
		zlog.Fatalw("jwt init", "err", err)
	}

	hub := ws.NewHub()
	app := server.New(server.Deps{
		Repo:     repo,
		Unread:   unread,
		Pub:      pub,
		Hub:      hub,
		Media:    mediaSvc,
		Verifier: verifier,
		Redis:    unread.Cli,
		Presence: unread,
		Log:      zlog,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zlog.Infow("chatd listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zlog.Info("chatd stopped")
}
