package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/FarkasZalan/Novo-sub000/internal/middleware"
	"github.com/FarkasZalan/Novo-sub000/internal/plugins/activity"
	"github.com/FarkasZalan/Novo-sub000/internal/plugins/auth"
)

// healthTimeout bounds each dependency ping of the health check.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Public Routes (no auth required) ---

	// Health check for the orchestrator. Reports 503 when MariaDB or Redis
	// cannot be reached.
	e.GET("/healthz", a.healthz)

	// --- Plugin Wiring ---

	authSvc := auth.NewAuthService(a.Redis, a.Config.Auth.SessionTTL)

	activitySvc := activity.NewActivityService(
		activity.NewChangeLogRepository(a.DB),
		activity.NewMembershipRepository(a.DB),
		activity.NewLookupRepository(a.DB),
		a.Config.Feed,
	)

	// --- API Routes ---
	api := e.Group("/api/v1")

	limiter := middleware.RateLimit(a.Redis, a.Config.RateLimit.Requests, a.Config.RateLimit.Window,
		func(c echo.Context) string {
			if id := auth.GetUserID(c); id != "" {
				return "user:" + id
			}
			return ""
		})

	activity.RegisterRoutes(api, activity.NewHandler(activitySvc), authSvc, limiter)
}

// healthz pings MariaDB and Redis.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"mariadb": "ok", "redis": "ok"}
	healthy := true
	if err := a.DB.PingContext(ctx); err != nil {
		status["mariadb"] = "unavailable"
		healthy = false
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "unavailable"
		healthy = false
	}

	if !healthy {
		status["status"] = "degraded"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	status["status"] = "ok"
	return c.JSON(http.StatusOK, status)
}
