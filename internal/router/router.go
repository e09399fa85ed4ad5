package router // route registration for the exchange API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/upclick/task-exchange/internal/config"
	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/handler"
	"github.com/upclick/task-exchange/internal/middleware"
)

// Deps collects everything route registration needs.
type Deps struct {
	Cfg      config.Config
	Engine   *exchange.Engine
	Auth     *handler.AuthHandler
	Exchange *handler.ExchangeHandler
	Account  *handler.AccountHandler
	Admin    *handler.AdminHandler
	Redis    *redis.Client
}

// Register wires every route. The surface splits into three tiers:
// public (health, auth), authenticated exchange routes behind the
// access-window gate, and the ADMIN-only operator group.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Session endpoints need no JWT; logout accepts either a refresh
	// token in the body or a bearer token.
	auth := e.Group("/v1/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout, middleware.JWTAuth(d.Cfg.JWTSecret))

	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis)

	// The exchange proper. Expired accounts can still log in and see
	// their own state, but the task pool sits behind the access gate.
	v1 := e.Group("/v1",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole("USER", "ADMIN"),
	)
	v1.GET("/me", d.Account.Me)
	v1.GET("/me/balance", d.Account.Balance)
	v1.GET("/me/access", d.Account.Access)

	tasks := v1.Group("/tasks", middleware.AccessGate(d.Engine), rl)
	tasks.GET("", d.Exchange.ListTasks, cache)
	tasks.POST("", d.Exchange.CreateTask)
	tasks.GET("/:id", d.Exchange.GetTask)
	tasks.POST("/:id/complete", d.Exchange.CompleteTask)
	tasks.DELETE("/:id", d.Exchange.DeleteTask)

	admin := e.Group("/v1/admin",
		middleware.JWTAuth(d.Cfg.JWTSecret),
		middleware.RequireRole("ADMIN"),
	)
	admin.PATCH("/users/:id/access", d.Admin.SetAccessOverride)
	admin.PATCH("/users/:id/credits", d.Admin.SetCredits)
	admin.PATCH("/users/:id/payment", d.Admin.RecordPayment)
	admin.DELETE("/tasks/:id", d.Admin.DeleteTask)
}
