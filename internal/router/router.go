// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/cinebook/cinebook/internal/config"
	"github.com/cinebook/cinebook/internal/handler"
	"github.com/cinebook/cinebook/internal/middleware"
	"github.com/cinebook/cinebook/internal/model"
)

// Handlers collects every handler the router needs.
type Handlers struct {
	Auth         *handler.AuthHandler
	Movies       *handler.MovieHandler
	Rooms        *handler.RoomHandler
	Showtimes    *handler.ShowtimeHandler
	Reservations *handler.ReservationHandler
	Webhooks     *handler.WebhookHandler
}

// Register sets up all routes on the Echo instance.
//
// Layout:
//
//	/healthz                      liveness probe
//	/v1/auth/*                    register, login, refresh, logout
//	/v1/movies, /v1/showtimes     public browse (cached)
//	/v1/reservations/*            customer endpoints (JWT)
//	/v1/admin/*                   catalog management (JWT + ADMIN)
//	/v1/webhooks/stripe           payment provider callbacks
func Register(e *echo.Echo, db *sql.DB, rdb *redis.Client, cfg config.Config, h Handlers) {
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e.GET("/healthz", handler.Health(db))

	auth := e.Group("/v1/auth", rateLimit)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Public browse endpoints.  Seat maps are cached with a short TTL;
	// stale availability is tolerated because the claim itself is
	// authoritative.
	pub := e.Group("/v1", rateLimit, cache)
	pub.GET("/movies", h.Movies.List)
	pub.GET("/movies/:id", h.Movies.Get)
	pub.GET("/movies/:id/showtimes", h.Showtimes.ListByMovie)
	pub.GET("/showtimes/:id", h.Showtimes.Get)

	customer := e.Group("/v1", rateLimit, middleware.JWTAuth(cfg.JWTSecret))
	customer.POST("/reservations", h.Reservations.Create)
	customer.GET("/reservations", h.Reservations.List)
	customer.GET("/reservations/:id", h.Reservations.Get)
	customer.DELETE("/reservations/:id", h.Reservations.Cancel)
	customer.POST("/reservations/:id/payment-intent", h.Reservations.CreateIntent)

	admin := e.Group("/v1/admin", rateLimit,
		middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/movies", h.Movies.Create)
	admin.DELETE("/movies/:id", h.Movies.Delete)
	admin.POST("/rooms", h.Rooms.Create)
	admin.GET("/rooms", h.Rooms.List)
	admin.POST("/showtimes", h.Showtimes.Create)

	// Webhooks authenticate by signature, not JWT, and are never rate
	// limited; dropping a provider callback costs a confirmation.
	e.POST("/v1/webhooks/stripe", h.Webhooks.Stripe)
}
