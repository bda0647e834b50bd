package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"complaintbot/internal/api"
	"complaintbot/internal/auth"
	"complaintbot/internal/bot"
	"complaintbot/internal/config"
	"complaintbot/internal/media"
	"complaintbot/internal/models"
	"complaintbot/internal/redis"
	"complaintbot/internal/service/intake"
	"complaintbot/internal/storage"
	"complaintbot/internal/worker"
)

func main() {
	cfgPath := os.Getenv("COMPLAINTBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("COMPLAINTBOT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis is optional: without it session caching and the cross-process
	// finalize guard fall back to in-process state.
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, running without cache: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	uploadDir := cfg.BasicConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	exportDir := cfg.BasicConfig.ExportDir
	if exportDir == "" {
		exportDir = "./data/exports"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatalf("create upload dir: %v", err)
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		log.Fatalf("create export dir: %v", err)
	}

	exportTTL := time.Duration(cfg.BasicConfig.ExportTTLMinutes) * time.Minute
	if exportTTL <= 0 {
		exportTTL = intake.DefaultExportTTL
	}
	intakeService := intake.NewService(db, exportDir, exportTTL)

	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	cleanInterval := time.Duration(cfg.BasicConfig.ExportCleanMinutes) * time.Minute
	if cleanInterval <= 0 {
		cleanInterval = intake.DefaultExportCleanupInterval
	}
	intakeService.StartExportCleaner(cleanCtx, cleanInterval)

	engine := bot.NewEngine(
		cfg.Bot.ConfirmationCode,
		cfg.Bot.CancelToken,
		cfg.Bot.SkipMarker,
		models.Menu(cfg.Bot.Branches),
		models.Menu(cfg.Bot.Categories),
	)

	ingestTimeout := time.Duration(cfg.BasicConfig.IngestTimeoutSeconds) * time.Second
	ingestor := media.NewHTTPIngestor(uploadDir, cfg.BasicConfig.PublicBaseURL, ingestTimeout)

	manager := worker.NewManager(intakeService, engine, ingestor, rdb, cfg.BasicConfig.PublicBaseURL, cfg.BasicConfig.QueueSize)
	defer manager.Stop()

	authService := auth.NewService(db, 24*time.Hour)
	handlers := api.NewHandler(intakeService, authService, manager, uploadDir, exportDir)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
