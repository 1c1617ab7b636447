package server

import (
	"time"

	"kanban-board/internal/config"
	"kanban-board/internal/handlers"
	"kanban-board/internal/middleware"
	"kanban-board/internal/monitoring"
	"kanban-board/internal/realtime"
	"kanban-board/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Auth        services.AuthService
	Columns     services.ColumnService
	Cards       services.CardService
	Hub         *realtime.Hub
	Monitor     *monitoring.Monitor
	RateLimiter *middleware.RateLimiter
	OnLogin     func(userID uint)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handlers.ClientIDHeader, "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// NewRouter mounts every route on a fresh engine. Auth, board and card routes
// share the uniform error body rendered by middleware.ErrorHandler.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.RequestLogger())
	if deps.Monitor != nil {
		router.Use(deps.Monitor.Middleware())
	}
	router.Use(cors.New(corsConfig(deps.Config.Server.AllowedOrigins)))
	router.Use(middleware.ErrorHandler())
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	if deps.Monitor != nil {
		router.GET("/health", deps.Monitor.HealthHandler())
		router.GET("/health/ready", deps.Monitor.ReadinessHandler())
		router.GET("/health/live", deps.Monitor.LivenessHandler())
		router.GET("/metrics", deps.Monitor.MetricsHandler())
	}

	var notifier handlers.BoardNotifier
	if deps.Hub != nil {
		notifier = deps.Hub
	}

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Auth).OnLogin(deps.OnLogin)
	columnHandler := handlers.NewColumnHandler(deps.DB, deps.Columns, notifier)
	cardHandler := handlers.NewCardHandler(deps.DB, deps.Cards, notifier)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/logout", middleware.Auth(deps.Auth), authHandler.Logout)
	}

	protected := router.Group("/", middleware.Auth(deps.Auth))
	{
		protected.GET("/columns", columnHandler.GetBoard)
		protected.POST("/columns", columnHandler.CreateColumn)
		protected.PUT("/columns/:id", columnHandler.UpdateColumn)
		protected.DELETE("/columns/:id", columnHandler.DeleteColumn)

		protected.GET("/cards", cardHandler.SearchCards)
		protected.POST("/cards", cardHandler.CreateCard)
		protected.PUT("/cards/:id", cardHandler.UpdateCard)
		protected.DELETE("/cards/:id", cardHandler.DeleteCard)
	}

	if deps.Hub != nil {
		router.GET("/ws", handlers.NewRealtimeHandler(deps.Auth, deps.Hub).Subscribe)
	}

	return router
}
