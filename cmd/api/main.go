package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/api/handlers"
	"github.com/leakscope/backend/internal/archive"
	"github.com/leakscope/backend/internal/classifier"
	"github.com/leakscope/backend/internal/collector"
	"github.com/leakscope/backend/internal/dedup"
	"github.com/leakscope/backend/internal/metrics"
	"github.com/leakscope/backend/internal/middleware/ratelimit"
	"github.com/leakscope/backend/internal/middleware/security"
	"github.com/leakscope/backend/internal/normalize"
	"github.com/leakscope/backend/internal/orchestrator"
	"github.com/leakscope/backend/internal/pipeline"
	"github.com/leakscope/backend/internal/scoring"
	"github.com/leakscope/backend/internal/signals"
	"github.com/leakscope/backend/internal/storage/sqlite"
	"github.com/leakscope/backend/pkg/config"
	appLogger "github.com/leakscope/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting leakscope triage backend")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var seenSet dedup.SeenSet
	redisSeen, err := dedup.NewRedisSeenSet(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, deduplication will not survive restarts", zap.Error(err))
		seenSet = dedup.NewMemorySeenSet()
	} else {
		defer redisSeen.Close()
		seenSet = redisSeen
	}

	var leakClassifier scoring.Classifier
	if cfg.Classifier.Enabled && cfg.Classifier.APIKey != "" {
		leakClassifier = classifier.NewOpenAIClassifier(
			cfg.Classifier.APIKey,
			cfg.Classifier.Model,
			cfg.Classifier.Temperature,
			cfg.Classifier.MaxTokens,
			cfg.Classifier.TimeoutSec,
		)
	} else {
		appLogger.Warn("Classifier disabled, scoring with neutral probability")
	}

	triagePipeline := pipeline.New(
		collector.NewJSONFileCollector(),
		normalize.NewNormalizer(),
		signals.NewExtractor(),
		scoring.NewScorer(leakClassifier, cfg.Triage.TrustedSources),
		dedup.NewRouter(cfg.Triage.ConfirmThreshold, cfg.Triage.RejectThreshold),
		seenSet,
		archive.NewWriter(cfg.Archive.ProcessedDir, cfg.Archive.ReviewDir),
		sqliteClient,
	)

	orch := orchestrator.New(
		triagePipeline,
		cfg.Triage.Sources,
		time.Duration(cfg.Triage.SourceTimeoutSec)*time.Second,
		sqliteClient,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(security.Headers())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	limiter := ratelimit.New(60, time.Minute)
	app.Use(limiter.Middleware())

	triageHandler := handlers.NewTriageHandler(orch)
	incidentHandler := handlers.NewIncidentHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/triage/run", triageHandler.RunNow)
	api.Get("/triage/status", triageHandler.Status)
	api.Get("/triage/runs/:id", incidentHandler.GetTriageRun)
	api.Get("/incidents", incidentHandler.ListIncidents)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
