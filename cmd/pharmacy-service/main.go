package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/analytics"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/config"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/db"
	httpHandler "github.com/vasiliy-maslov/pharmacy-marketplace/internal/handler/http"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/notification"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/order"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/review"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/tracing"
)

const serviceName = "pharmacy-service"

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", serviceName).Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Str("env", cfg.Env).Msg("Pharmacy service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Env, cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracing")
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.ApplyMigrations(pg, cfg.Postgres); err != nil {
		pg.Close()
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	var sinks []notification.Sink
	var kafkaSink *notification.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err = notification.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("Kafka unavailable, order events will not be published")
		} else {
			sinks = append(sinks, kafkaSink)
		}
	}
	if cfg.SMTP.Host != "" {
		sinks = append(sinks, notification.NewEmailSink(notification.SMTPSettings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, cfg.Notification.AdminEmails))
	}
	dispatcher := notification.NewAsyncDispatcher(cfg.Notification.Timeout, sinks...)

	users := identity.NewRepository(pg.Pool)
	catalogRepo := catalog.NewRepository(pg.Pool)

	orderSvc := order.NewService(order.NewRepository(pg.Pool), catalogRepo, users, dispatcher)
	reviewSvc := review.NewService(review.NewRepository(pg.Pool), orderSvc)
	catalogSvc := catalog.NewService(catalogRepo)

	analyticsSvc := analytics.NewService(analytics.NewRepository(pg.SQLX()))
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis ping failed, analytics cache will fall back to the database")
		}
		analyticsSvc = analytics.NewCachedService(analyticsSvc, analytics.NewRedisCache(redisClient), cfg.Redis.TTL)
	}

	router := httpHandler.NewRouter(httpHandler.RouterDeps{
		Orders:    httpHandler.NewOrderHandler(orderSvc),
		Reviews:   httpHandler.NewReviewHandler(reviewSvc),
		Catalog:   httpHandler.NewCatalogHandler(catalogSvc),
		Analytics: httpHandler.NewAnalyticsHandler(analyticsSvc),
		Auth:      httpHandler.NewAuthMiddleware(identity.NewTokenVerifier(cfg.Auth.JWTSecret), users),
		Health:    pg.Pool.Ping,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Pending notifications abandoned")
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}
	pg.Close()

	log.Info().Msg("Pharmacy service stopped gracefully")
}
