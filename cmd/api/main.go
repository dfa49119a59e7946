package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"adforge/internal/designsystem"
	"adforge/internal/domain"
	"adforge/internal/events"
	"adforge/internal/http/handlers"
	httpapi "adforge/internal/http/httpapi"
	"adforge/internal/infra"
	"adforge/internal/orchestrator"
	"adforge/internal/providers"
	"adforge/internal/providers/bannerbear"
	"adforge/internal/providers/replicate"
	"adforge/internal/providers/vision"
	"adforge/internal/storage"
	"adforge/internal/store"
)

func main() {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}

	var jobs domain.JobRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: db connection failed")
		}
		defer pool.Close()
		pg := store.NewPostgresStore(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: ensure schema failed")
		}
		jobs = pg
		checks["database"] = pool.Ping
	} else {
		logger.Warn().Msg("api: DATABASE_URL not set, jobs are kept in memory")
		jobs = store.NewMemoryStore()
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage init failed")
	}
	checks["storage"] = files.Check

	images, err := replicate.NewClient(replicate.Options{
		APIToken:       cfg.ReplicateAPIToken,
		BaseURL:        cfg.ReplicateBaseURL,
		Model:          cfg.ReplicateModel,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderHTTPTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: replicate client")
	}
	overlays, err := bannerbear.NewClient(bannerbear.Options{
		APIKey:         cfg.BannerbearAPIKey,
		BaseURL:        cfg.BannerbearBaseURL,
		SyncBaseURL:    cfg.BannerbearSyncBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderHTTPTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: bannerbear client")
	}

	var describer providers.Describer
	if cfg.GeminiAPIKey != "" {
		client, err := vision.NewClient(ctx, vision.Options{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			RequestTimeout: cfg.ProviderHTTPTimeout,
			Logger:         &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: gemini client")
		}
		describer = client
	}

	browser := designsystem.NewRodSnapshotter(designsystem.RodOptions{Bin: cfg.BrowserBin, Logger: &logger})
	defer browser.Close()
	extractor := designsystem.NewExtractor(designsystem.Options{
		Snapshotter: browser,
		Describer:   describer,
		Store:       files,
		Logger:      &logger,
	})

	bus := events.NewBus(&logger)
	var relayDone <-chan struct{}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: nats connection failed")
		}
		defer drainNATS(nc, logger)
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
		// The relay outlives the signal so events from drained jobs still
		// reach NATS; it stops when the bus closes.
		ch, _ := bus.Subscribe(events.DefaultBuffer)
		relayDone = events.NewRelay(nc, cfg.NATSSubjectPrefix, &logger).Start(ch)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Config: orchestrator.Config{
			Templates:     cfg.Templates,
			ImagePolicy:   providers.PollPolicy{Interval: cfg.ImagePollInterval, MaxAttempts: cfg.ImagePollMaxAttempts},
			OverlayPolicy: providers.PollPolicy{Interval: cfg.OverlayPollInterval, MaxAttempts: cfg.OverlayPollMaxAttempts},
		},
		Store:     jobs,
		Images:    images,
		Overlays:  overlays,
		Extractor: extractor,
		Bus:       bus,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: orchestrator init failed")
	}

	app := handlers.NewApp(orch, cfg.Templates, &logger)
	app.Checks = checks
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          &logger,
		AllowedOrigins:  cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)
	server.RegisterOnShutdown(app.CloseStreams)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("api: http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: http shutdown")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api: jobs still running at deadline were failed")
	}
	bus.Close()
	if relayDone != nil {
		<-relayDone
	}
	logger.Info().Msg("api: stopped")
}

func drainNATS(nc *nats.Conn, logger infra.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn().Err(err).Msg("api: nats drain")
	}
}
