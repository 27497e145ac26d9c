package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tandemlabs/tandem/internal/contest"
	"github.com/tandemlabs/tandem/internal/dbconfig"
	"github.com/tandemlabs/tandem/internal/events"
	"github.com/tandemlabs/tandem/internal/gateway"
	"github.com/tandemlabs/tandem/internal/pairing"
	"github.com/tandemlabs/tandem/internal/push"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if getEnv("LOG_LEVEL", "") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	// Storage
	var (
		pairingRepo pairing.Repository
		contestRepo contest.Repository
		pushRepo    push.Repository
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := dbconfig.NewConfigFromEnv().Connect(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		pairingRepo = pairing.NewPostgresRepository(pool)
		contestRepo = contest.NewPostgresRepository(pool)
		pushRepo = push.NewPostgresRepository(pool)
	case "memory":
		pairingRepo = pairing.NewMemoryRepository()
		contestRepo = contest.NewMemoryRepository()
		pushRepo = push.NewMemoryRepository()
	default:
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("unknown storage driver")
	}

	// Event publishing over JetStream
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create JetStream context")
	}
	publisher, err := events.NewJetStreamPublisher(ctx, js, cfg.NATS.Stream, cfg.NATS.SubjectPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Push notifications
	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
		TTLSec:          cfg.Push.TTLSec,
	}
	if !pushCfg.Configured() {
		log.Warn().Msg("VAPID keys not set, push notifications degrade to fallback")
	}
	pushService := push.NewService(
		pushRepo,
		push.NewMemoryPermissions(true),
		nil,
		push.NewWebPushSender(pushCfg),
		push.LogFallback{},
		pushCfg,
		clock,
	)

	pairingService := pairing.NewService(pairingRepo, publisher, pushService, clock, pairing.DefaultOutcomeCatalog)
	contestService := contest.NewService(contestRepo, publisher, pairingService, clock)

	// Gateway
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = cfg.NATS.URL
	gatewayConfig.JetStreamConfig.StreamName = cfg.NATS.Stream
	gatewayConfig.JetStreamConfig.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"

	actionHandler := gateway.NewActionHandler(pairingService, contestService, pushService)
	actionHandler.SetPairingDefaults(cfg.Pairing.WindowSec, cfg.Pairing.HistoryCapacity)
	stateProvider := gateway.NewServiceStateProvider(pairingService, contestService)

	gatewayService, err := gateway.NewService(gatewayConfig, stateProvider, actionHandler)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().
		Str("port", cfg.Server.Port).
		Str("nats_url", cfg.NATS.URL).
		Str("storage", cfg.Storage.Driver).
		Msg("starting tandemd")

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("tandemd shutdown complete")
}
