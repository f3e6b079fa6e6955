package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/BruksfildServices01/barber-sync/internal/config"
	"github.com/BruksfildServices01/barber-sync/internal/feed"
	"github.com/BruksfildServices01/barber-sync/internal/guard"
	"github.com/BruksfildServices01/barber-sync/internal/handlers"
	infraRepo "github.com/BruksfildServices01/barber-sync/internal/infra/repository"
	"github.com/BruksfildServices01/barber-sync/internal/livesync"
	"github.com/BruksfildServices01/barber-sync/internal/middleware"
	"github.com/BruksfildServices01/barber-sync/internal/ratelimit"
)

func RegisterRoutes(
	r *gin.Engine,
	db *gorm.DB,
	bus feed.Bus,
	limiter ratelimit.Limiter,
	cfg *config.Config,
) {

	// ======================================================
	// INFRA (SINGLETONS)
	// ======================================================
	store := infraRepo.NewBookingGormRepository(db, bus)

	admissionGuard := guard.New(store, limiter)

	syncManager := livesync.NewManager(store, bus, livesync.Options{
		FetchTimeout: cfg.FetchTimeout,
		MaxBackoff:   cfg.ReconnectMaxBackoff,
	})

	// ======================================================
	// HANDLERS
	// ======================================================
	publicHandler := handlers.NewPublicHandler(admissionGuard)
	liveHandler := handlers.NewLiveHandler(store, syncManager)

	// ======================================================
	// API (JSON)
	// ======================================================
	api := r.Group("/api")
	{
		// ------------------------------
		// PUBLIC (storefront widget)
		// ------------------------------
		publicAPI := api.Group("/public")
		{
			publicAPI.POST("/:slug/appointments", publicHandler.CreateAppointment)
		}

		// ------------------------------
		// STAFF (JWT)
		// ------------------------------
		secured := api.Group("/")
		secured.Use(middleware.AuthMiddleware(cfg))
		{
			secured.GET("/shops/:id/live", liveHandler.Snapshot)
			secured.POST("/shops/:id/live/refresh", liveHandler.Refresh)
			secured.DELETE("/shops/:id/live", liveHandler.Stop)
			secured.GET("/shops/:id/live/ws", liveHandler.Stream)
		}
	}
}
