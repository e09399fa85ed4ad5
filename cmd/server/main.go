package main // entry point for the task exchange API server

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/upclick/task-exchange/internal/config"
	"github.com/upclick/task-exchange/internal/database"
	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/handler"
	"github.com/upclick/task-exchange/internal/queue"
	"github.com/upclick/task-exchange/internal/repository"
	"github.com/upclick/task-exchange/internal/router"
	"github.com/upclick/task-exchange/internal/verify"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.DBName); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	rdb := config.NewRedisClient() // nil when Redis is unreachable

	store := repository.NewExchangeStore(db)

	var verifier exchange.ActionVerifier
	if cfg.VerifierURL != "" {
		verifier = verify.New(cfg.VerifierURL)
	} else {
		log.Println("VERIFIER_URL unset; completions are auto-verified")
		verifier = verify.AlwaysVerified()
	}

	eng := exchange.New(store, verifier, queue.RewardPublisher{}, exchange.Config{
		VerifyTimeout:  cfg.VerifierTO,
		AdminGrantDays: cfg.AdminGrantDays,
	})

	// Reward notifications are consumed off-process from the broker
	// and appended to logs/rewards.log.
	go func() {
		if err := queue.StartRewardConsumer(); err != nil {
			log.Printf("reward consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	users := repository.NewUserRepo(db)
	router.Register(e, router.Deps{
		Cfg:      cfg,
		Engine:   eng,
		Auth:     handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)),
		Exchange: handler.NewExchangeHandler(eng),
		Account:  handler.NewAccountHandler(eng, users),
		Admin:    handler.NewAdminHandler(eng, users),
		Redis:    rdb,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
