package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/openidx/ciam-console/internal/common/health"
	"github.com/openidx/ciam-console/internal/common/logger"
	"github.com/openidx/ciam-console/internal/common/middleware"
)

// RouterConfig carries what the router needs besides the directory
type RouterConfig struct {
	ServiceName string
	Production  bool
	Logger      *zap.Logger
	// Health is optional; without it /health and /ready are not served
	Health *health.HealthService
}

// DirectoryRoutes registers the user and application routes
func DirectoryRoutes(router *gin.RouterGroup, handler *Handler) {
	users := router.Group("/users")
	{
		users.POST("", handler.CreateUser)
		users.GET("", handler.ListUsers)
		users.GET("/:identifier", handler.GetUser)
	}
	router.POST("/applications", handler.CreateApplication)
}

// NewRouter builds the admin API engine with its middleware chain
func NewRouter(dir Directory, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(cfg.Logger),
		otelgin.Middleware(cfg.ServiceName),
		logger.GinMiddleware(cfg.Logger),
		middleware.PrometheusMetrics(cfg.ServiceName),
		middleware.SecurityHeaders(cfg.Production),
	)

	if cfg.Health != nil {
		cfg.Health.RegisterStandardRoutes(router)
	}
	router.GET("/metrics", middleware.MetricsHandler())

	DirectoryRoutes(VersionRouteGroup(router, DefaultAPIVersion), NewHandler(dir, cfg.Logger))
	return router
}
