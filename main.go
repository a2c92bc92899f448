package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fest-event-system/config"
	"fest-event-system/exports"
	"fest-event-system/handlers"
	"fest-event-system/middleware"
	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/services"
	"fest-event-system/utils"
	"fest-event-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const uploadDir = "./uploads"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// 🗄️ Payment proofs go to R2 when configured, else to the local uploads dir
	var blobs utils.BlobStore
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Store(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		blobs = r2
		log.Printf("✅ Payment proofs stored in R2 bucket %s", cfg.R2Bucket)
	} else {
		local, err := utils.NewLocalStore(uploadDir, "/uploads")
		if err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
		blobs = local
		log.Println("⚠️  R2 not configured, storing payment proofs in ./uploads")
	}

	// 📡 Realtime fan-out: SSE hub plus the optional Telegram relay
	hub := realtime.NewHub(64)
	var events realtime.Broadcaster = hub
	if cfg.TelegramEnabled() {
		relay, err := realtime.NewTelegramRelay(cfg.TelegramToken, cfg.TelegramAdminChatID)
		if err != nil {
			log.Printf("⚠️  Telegram relay disabled: %v", err)
		} else {
			events = realtime.Multi{hub, relay}
			go relay.Run(ctx)
		}
	}

	notifier := services.NewNotifier(db, events)
	panelService := services.NewPanelService(db, events)
	subEventService := services.NewSubEventService(db, events)
	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpiry)
	exportService := services.NewExportService(db)

	if err := authService.SeedAdmin(cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		log.Fatal("failed to seed admin:", err)
	}

	svc := &handlers.Services{
		Auth:         authService,
		Users:        services.NewUserService(db),
		Settings:     services.NewSettingsService(db),
		SubEvents:    subEventService,
		Registration: services.NewRegistrationService(db, blobs, events, notifier),
		Rounds:       services.NewRoundService(db, events, notifier),
		Groups:       services.NewGroupService(db, events, notifier),
		Panels:       panelService,
		Evaluations:  services.NewEvaluationService(db, events, panelService),
		Topics:       services.NewTopicService(db),
		Attendance:   services.NewAttendanceService(db),
		Queries:      services.NewQueryService(db, events, notifier),
		Notifier:     notifier,
		Analytics:    services.NewAnalyticsService(db),
		Exports:      exportService,
		Hub:          hub,
		JudgeLimiter: middleware.NewIPLimiter(cfg.JudgeLoginPerMinute),
	}

	// 📊 Google Sheets mirror of approved participants
	if cfg.SheetsEnabled() {
		writer, err := exports.NewSheetsWriter(ctx, cfg.GoogleServiceAccountJSON, cfg.GoogleSheetsID, "Participants")
		if err != nil {
			log.Printf("⚠️  Sheet sync disabled: %v", err)
		} else {
			worker := workers.NewSheetSyncWorker(exportService, writer, cfg.SheetsSyncInterval)
			worker.Start(ctx)
			svc.Sheets = worker
		}
	}

	scheduler, err := services.StartRegistrationScheduler(subEventService, time.Minute)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, Cache-Control, " + middleware.JudgeCodeHeader,
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.Setup(app, svc)
	app.Static("/uploads", uploadDir)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := scheduler.Shutdown(); err != nil {
		log.Printf("⚠️  Scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("⚠️  Server shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
