package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"match-orchestration-system/games"
	"match-orchestration-system/handlers"
	"match-orchestration-system/middleware"
	"match-orchestration-system/models"
	"match-orchestration-system/services"
	"match-orchestration-system/utils"
	"match-orchestration-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, v, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, v, fallback)
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // moves and queue requests are tiny
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Name",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.RatingRecord{},
		&models.RatingHistory{},
		&models.MatchRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	replayArchive := true
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, replay archiving disabled: %v", err)
		replayArchive = false
	}

	registry := games.NewRegistry()
	registry.Register(games.NewTicTacToe())
	registry.Register(games.NewConnectFour())

	queue := services.NewQueueService(envDuration("LIVENESS_TTL", 90*time.Second))
	pairing := services.NewPairingService(services.PairingConfig{
		BaseThreshold:     envInt("BASE_THRESHOLD", 100),
		ExpansionInterval: envDuration("EXPANSION_INTERVAL", 30*time.Second),
		ExpansionStep:     envInt("EXPANSION_STEP", 50),
	})
	ratings := services.NewRatingService(db)
	conns := services.NewConnectionRegistry(envDuration("CONNECTION_TTL", 60*time.Second))

	orchestrator := services.NewOrchestrator(db, queue, pairing, ratings, registry, conns, services.OrchestratorConfig{
		Session: services.SessionConfig{
			MoveTimeout: envDuration("MOVE_TIMEOUT", 30*time.Second),
			GraceWindow: envDuration("GRACE_WINDOW", 60*time.Second),
			MaxDuration: envDuration("MAX_GAME_DURATION", 0),
		},
		RetentionWindow: envDuration("RETENTION_WINDOW", 5*time.Minute),
		Debounce:        envDuration("SCAN_DEBOUNCE", 150*time.Millisecond),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.PollPendingRatings(ctx, ratings, envDuration("RECONCILE_INTERVAL", 30*time.Second))
	if replayArchive {
		go workers.ArchiveReplays(ctx, db, orchestrator.ReplayJobs())
	}

	orchestrator.StartScheduler(envDuration("HEARTBEAT_SCAN", 5*time.Second))

	handlers.SetupMatchmakingRoutes(app, orchestrator)
	handlers.SetupRatingRoutes(app, ratings)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Game variants registered: %d", len(registry.List()))
	log.Println("✅ Rating reconciliation worker running")
	log.Printf("✅ Replay archiving enabled: %t", replayArchive)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
