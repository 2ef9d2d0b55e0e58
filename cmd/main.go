package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/colosseum/brackets"
	"github.com/Dosada05/colosseum/config"
	"github.com/Dosada05/colosseum/db"
	"github.com/Dosada05/colosseum/handlers"
	"github.com/Dosada05/colosseum/queue"
	"github.com/Dosada05/colosseum/repositories"
	api "github.com/Dosada05/colosseum/routes"
	"github.com/Dosada05/colosseum/scheduler"
	"github.com/Dosada05/colosseum/services"
	"github.com/Dosada05/colosseum/storage"
	"github.com/Dosada05/colosseum/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("log_level", cfg.LogLevel.String()))

	automation, err := config.LoadAutomation(cfg.AutomationFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Подключение к Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("redis connection established")

	// Загрузчик выгрузок рейтинга (Cloudflare R2), если настроен
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()

	// Инициализация репозиториев
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	agentRepo := repositories.NewPostgresAgentRepository(dbConn)
	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	trophyRepo := repositories.NewPostgresTrophyRepository(dbConn)
	txRunner := db.NewTxRunner(dbConn)

	counters := telemetry.NewCounters()
	matchQueue := queue.NewMatchQueue(rdb, matchRepo, queue.Options{
		Key:                   cfg.MatchQueueKey,
		KillSwitchKey:         cfg.KillSwitchKey,
		RandomPickProbability: cfg.RandomPickProbability,
		Logger:                logger,
		Counters:              counters,
	})

	// Инициализация сервисов
	ratingService := services.NewRatingService(txRunner, ratingRepo, matchRepo, seasonRepo, counters, logger)
	trophyService := services.NewTrophyService(txRunner, tournamentRepo, matchRepo, trophyRepo, wsHub, counters, logger)
	tournamentService := services.NewTournamentService(
		txRunner,
		tournamentRepo,
		matchRepo,
		agentRepo,
		seasonRepo,
		trophyService,
		matchQueue,
		wsHub,
		counters,
		logger,
	)
	matchService := services.NewMatchService(txRunner, matchRepo, ratingService, wsHub, counters, logger)
	dispatchService := services.NewDispatchService(gameRepo, matchQueue, tournamentService, counters, logger)
	seasonService := services.NewSeasonService(txRunner, seasonRepo, agentRepo, ratingRepo, cfg.EnableAutomatedSeasons, logger)
	automationService := services.NewAutomationService(
		automation,
		cfg.EnableAutomatedTournaments,
		tournamentRepo,
		gameRepo,
		tournamentService,
		seasonService,
		logger,
	)
	exportService := services.NewRankingExportService(ratingService, uploader, logger)
	logger.Info("services initialized")

	// Планировщик периодических задач
	sched := scheduler.New(rdb, logger)
	sched.Add("sweep", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := tournamentService.UpdateTournamentsState(ctx)
		return err
	})
	sched.Add("regenerate", cfg.RegenerateInterval, func(ctx context.Context) error {
		_, err := matchQueue.Regenerate(ctx)
		return err
	})
	sched.Add("automation", cfg.AutomationInterval, func(ctx context.Context) error {
		return automationService.Run(ctx, time.Now())
	})
	sched.Add("heartbeat", cfg.HeartbeatInterval, scheduler.Heartbeat(rdb, cfg.HeartbeatKey, nil))

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		cfg.AllowedOrigins,
		handlers.NewMatchHandler(dispatchService, matchService, logger),
		handlers.NewTournamentHandler(tournamentService, trophyService),
		handlers.NewAdminHandler(dispatchService, ratingService, exportService, trophyService, tournamentService, logger),
		handlers.NewWebSocketHandler(wsHub, tournamentService, logger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("application exited")
	return nil
}
