package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/sparelink/parts-marketplace/internal/config"
	"github.com/sparelink/parts-marketplace/internal/database"
	"github.com/sparelink/parts-marketplace/internal/handler"
	"github.com/sparelink/parts-marketplace/internal/middleware"
	"github.com/sparelink/parts-marketplace/internal/queue"
	"github.com/sparelink/parts-marketplace/internal/repository"
	"github.com/sparelink/parts-marketplace/internal/router"
	queue_publisher "github.com/sparelink/parts-marketplace/internal/service"
)

func main() {
	_ = godotenv.Load() // best effort; real deployments set env directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient() // nil disables rate limiting
	if rdb == nil {
		log.Printf("redis unavailable; auth rate limiting disabled")
	}

	accounts := repository.NewAccountRepo(db)
	tokens := repository.NewTokenRepo(db)
	perms := repository.NewPermissionRepo(db)
	logs := repository.NewLoginLogRepo(db)
	events := queue_publisher.NewPublisher()

	// Background consumer appending security events to logs/security.log.
	go func() {
		if err := queue.StartSecurityConsumer(); err != nil {
			log.Printf("security consumer stopped: %v", err)
		}
	}()

	authH := handler.NewAuthHandler(cfg, accounts, tokens, perms, events)
	adminH := handler.NewAccountAdminHandler(cfg, accounts, tokens, logs, events)

	e := echo.New()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, adminH, accounts, perms, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
