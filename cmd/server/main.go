package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/trogers1052/signal-desk/internal/api"
	"github.com/trogers1052/signal-desk/internal/config"
	"github.com/trogers1052/signal-desk/internal/database"
	"github.com/trogers1052/signal-desk/internal/events"
	"github.com/trogers1052/signal-desk/internal/ingest"
	"github.com/trogers1052/signal-desk/internal/kafka"
	"github.com/trogers1052/signal-desk/internal/leaderboard"
	"github.com/trogers1052/signal-desk/internal/logger"
	"github.com/trogers1052/signal-desk/internal/redis"
	"github.com/trogers1052/signal-desk/internal/scheduler"
	"github.com/trogers1052/signal-desk/internal/signals"
	"github.com/trogers1052/signal-desk/internal/telegram"
	"github.com/trogers1052/signal-desk/internal/trades"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	zlog.Logger = log
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := database.New(connectCtx, cfg.Database)
	connectCancel()
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Str("host", cfg.Database.Host).Msg("connected to PostgreSQL")

	applied, err := database.Migrate(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	log.Info().Bool("applied", applied).Msg("database migrations up to date")

	publishers := events.Fanout{}
	deps := api.Dependencies{Store: db, Log: log}

	// Redis is optional; the service runs without it
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without event channel")
		} else {
			defer redisClient.Close()
			publishers = append(publishers, redisClient)
			deps.Redis = redisClient
			log.Info().Str("addr", cfg.Redis.Address()).Str("channel", cfg.Redis.EventsChannel).Msg("connected to Redis")
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
		publishers = append(publishers, producer)
		deps.Kafka = true
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.EventsTopic).Msg("kafka producer initialized")
	}

	if notifier := telegram.NewNotifier(cfg.Telegram, log); notifier.Enabled() {
		publishers = append(publishers, notifier)
	}

	publisher := events.WithTimeout(publishers, cfg.Events.PublishTimeout)

	engine := signals.NewEngine(db, publisher, log)
	gateway := ingest.NewGateway(cfg.Auth.WebhookSecret, engine, log)

	deps.Ingester = gateway
	deps.Signals = engine
	deps.Trades = trades.NewLedger(db, publisher, log)
	deps.Leaderboard = leaderboard.NewAggregator(db)

	var consumer *kafka.AlertsConsumer
	if cfg.Kafka.Enabled && cfg.Kafka.AlertsTopic != "" {
		consumer = kafka.NewAlertsConsumer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic, cfg.Kafka.ConsumerGroup, gateway, log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("kafka alerts consumer error")
			}
		}()
	}

	sweeper, err := scheduler.NewStaleSweeper(ctx, cfg.Scheduler.StaleSpec, cfg.Scheduler.StaleAfter, db, publisher, log)
	if err != nil {
		return err
	}
	sweeper.Start()

	// Set up HTTP handler and routes
	router := api.SetupRoutes(api.NewHandler(deps), cfg.Server.StaticDir)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	log.Info().Msg("shutting down server")

	// Cancel context to stop the Kafka consumer
	cancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing kafka consumer")
		}
	}
	return nil
}
