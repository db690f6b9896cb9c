package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/cache"
	"shabbat-mode/infrastructure/clients"
	"shabbat-mode/infrastructure/clients/facebook"
	"shabbat-mode/infrastructure/clients/hebcal"
	youtubeclient "shabbat-mode/infrastructure/clients/youtube"
	"shabbat-mode/infrastructure/configuration"
	"shabbat-mode/infrastructure/crypto"
	"shabbat-mode/infrastructure/logger"
	"shabbat-mode/infrastructure/persistence"
	"shabbat-mode/infrastructure/platform"
	"shabbat-mode/infrastructure/pubsub"
	"shabbat-mode/infrastructure/realtime"
	"shabbat-mode/infrastructure/servicebus"
	httpHandler "shabbat-mode/interfaces/http"
	"shabbat-mode/server"
	"shabbat-mode/usecase"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// config.env and .env are applied when the configuration package initialises
	cfg := configuration.C
	app := cfg.App

	cipher, err := crypto.NewTokenCipher(cfg.Vault.EncryptionKey, cfg.Vault.KeyVersion)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Token encryption key is missing or invalid; set TOKEN_ENCRYPTION_KEY")
	}

	psqlDb, connectionDb, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(2)
	}
	if err := persistence.EnsureSchedulerSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring scheduler schema")
		os.Exit(2)
	}

	var connections repository.IConnection
	var legacyTokens repository.ILegacyToken
	if connectionDb != psqlDb {
		if err := persistence.EnsureConnectionSchemaMSSQL(connectionDb); err != nil {
			logger.GetLogger().WithField("error", err).Error("Failed ensuring MSSQL connection schema")
		}
		connections = persistence.NewConnectionRepositoryMSSQL(connectionDb)
		legacyTokens = persistence.NewLegacyTokenRepositoryMSSQL(connectionDb)
	} else {
		connections = persistence.NewConnectionRepository(psqlDb)
		legacyTokens = persistence.NewLegacyTokenRepository(psqlDb)
	}

	var settingsRepo repository.IScheduleSettings
	mysqlDb, err := persistence.NewRepositories()
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MySQL not available - schedule settings fall back to the default location")
		mysqlDb = nil
	} else if err := persistence.EnsureScheduleSettingsSchema(mysqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring schedule settings schema")
	} else {
		settingsRepo = persistence.NewScheduleSettingsRepository(mysqlDb)
	}

	historyRepo := initiateHistory(ctx, psqlDb)

	retrier := clients.NewRetrier(clients.RetryConfig{
		MaxRetries: cfg.Scheduler.RetryAttempts,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	})

	var timeData repository.ITimeData = hebcal.NewClient(hebcal.Config{
		BaseURL:         cfg.TimeData.BaseURL,
		CandleMinutes:   cfg.TimeData.CandleMinutes,
		HavdalahMinutes: cfg.TimeData.HavdalahMinutes,
		Timeout:         cfg.TimeData.RequestTimeout(),
	}, retrier)
	redisClient, err := cache.NewCache(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - time data is fetched on every lookup")
	} else if redisClient != nil {
		timeData = cache.NewTimeDataCache(redisClient, timeData, cfg.TimeData.CacheTTL())
		defer redisClient.Close()
	}

	registry := platform.NewRegistry()
	for _, name := range cfg.Platforms {
		switch name {
		case "youtube":
			registry.Register(youtubeclient.NewYouTubeClient(configuration.YouTubeOAuthConfig(), retrier,
				youtubeclient.WithEndpoint(configuration.YouTubeEndpoint())), cfg.Scheduler.RequestsPerSecond)
		case "facebook":
			fb := configuration.FacebookConfig()
			registry.Register(facebook.NewFacebookClient(facebook.Config{
				GraphURL:     fb.GraphURL,
				ClientID:     fb.ClientID,
				ClientSecret: fb.ClientSecret,
			}, nil, retrier), cfg.Scheduler.RequestsPerSecond)
		default:
			logger.GetLogger().WithField("platform", name).Warn("Unknown platform in configuration, skipping")
		}
	}
	logger.GetLogger().WithField("platforms", registry.Platforms()).Info("Platform adapters registered")

	hub := realtime.NewOperationHub()
	publishers := []repository.IEventPublisher{hub}
	if cfg.Pubsub.ProjectID != "" && cfg.Pubsub.Topic != "" {
		client, err := gpubsub.NewClient(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("PubSub not available - operation events stay local")
		} else {
			p := pubsub.NewOperationPublisher(client, cfg.Pubsub.Topic)
			defer func() {
				p.Stop()
				_ = client.Close()
			}()
			publishers = append(publishers, p)
		}
	}
	if cfg.ServiceBus.Namespace != "" && cfg.ServiceBus.Queue != "" {
		sb, err := servicebus.NewServiceBusClient(cfg.ServiceBus.Namespace)
		if err == nil {
			var p *servicebus.OperationPublisher
			if p, err = servicebus.NewOperationPublisher(sb, cfg.ServiceBus.Queue); err == nil {
				defer p.Close(context.Background())
				publishers = append(publishers, p)
			}
		}
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without it")
		}
	}

	clock := clockwork.NewRealClock()
	tracker := usecase.NewPrivacyTracker(persistence.NewPrivacyStatusRepository(psqlDb))
	vault := usecase.NewTokenVault(connections, legacyTokens, cipher, crypto.Algorithm, clock)
	recorder := usecase.NewHistoryRecorder(historyRepo, cfg.Scheduler.HistoryRetention, clock)
	engine := usecase.NewSchedulerEngine(usecase.SchedulerDeps{
		Operations: persistence.NewOperationRepository(psqlDb),
		Settings:   settingsRepo,
		Vault:      vault,
		Registry:   registry,
		Calculator: usecase.NewTimeCalculator(timeData, usecase.ParseRolloverPolicy(cfg.Scheduler.RolloverPolicy), cfg.TimeData.DefaultTimezone),
		Bulk:       usecase.NewBulkRunner(tracker, cfg.Scheduler.MaxConcurrentItems),
		History:    recorder,
		Events:     usecase.NewEventFanout(publishers...),
		Clock:      clock,
	}, usecase.SchedulerConfig{
		MaxConcurrentOperations: cfg.Scheduler.MaxConcurrentOperations,
		IdleRecheck:             cfg.Scheduler.IdleRecheck(),
		DefaultLocation:         cfg.TimeData.DefaultLocation,
		DefaultTimezone:         cfg.TimeData.DefaultTimezone,
	})

	if cfg.Scheduler.Enabled {
		if err := engine.Bootstrap(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Scheduler bootstrap incomplete; idle recheck will retry")
		}
		g.Go(func() error {
			return engine.Run(ctx)
		})
	} else {
		logger.GetLogger().Info("Scheduler disabled by configuration; API only")
	}

	checks := map[string]httpHandler.HealthCheck{"postgres": psqlDb.PingContext}
	if connectionDb != psqlDb {
		checks["mssql"] = connectionDb.PingContext
	}
	if redisClient != nil {
		checks["redis"] = func(c context.Context) error { return redisClient.Ping(c).Err() }
	}
	if mysqlDb != nil {
		checks["mysql"] = gormPing(mysqlDb)
	}

	router := server.InitiateRouter(server.Handlers{
		Scheduler:        httpHandler.NewSchedulerHandler(engine, hub),
		PrivacyStatus:    httpHandler.NewPrivacyStatusHandler(tracker),
		History:          httpHandler.NewHistoryHandler(recorder),
		Connection:       httpHandler.NewConnectionHandler(vault, engine),
		ScheduleSettings: httpHandler.NewScheduleSettingsHandler(settingsRepo, engine, cfg.TimeData.DefaultLocation, cfg.TimeData.DefaultTimezone),
		Health:           httpHandler.NewHealthHandler(checks),
	}, app.SecretKey, app.AllowedOrigins)

	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", app.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
			if err := httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
		if app.TLSEnabled {
			logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
	logger.GetLogger().Info("Application stopped")
}

// InitiateDatabase returns (schedulerDB, connectionDB). The scheduler tables always live in
// PostgreSQL; connections move to SQL Server with DB_VENDOR=mssql or in production.
func InitiateDatabase() (*sql.DB, *sql.DB, error) {
	postgres, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, nil, err
	}
	env := os.Getenv("ENV")
	if os.Getenv("DB_VENDOR") == "mssql" || env == "production" || env == "prod" {
		mssql, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			_ = postgres.Close()
			return nil, nil, err
		}
		return postgres, mssql, nil
	}
	return postgres, postgres, nil
}

// initiateHistory prefers MongoDB and falls back to the history_entries table.
func initiateHistory(ctx context.Context, psqlDb *sql.DB) repository.IHistory {
	mongoDb, err := persistence.NewMongoDB(ctx)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - history is kept in PostgreSQL")
		return persistence.NewHistoryRepository(psqlDb)
	}
	repo := persistence.NewHistoryRepositoryMongo(mongoDb)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring history indexes")
	}
	logger.GetLogger().Info("MongoDB connected successfully")
	return repo
}

func gormPing(db *gorm.DB) httpHandler.HealthCheck {
	return func(c context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(c)
	}
}
