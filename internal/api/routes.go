// routes.go - Route registration helpers
package api

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/plc-filebridge/backend/internal/logging"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    FileStore
	Progress ProgressReader
	Runs     RunLister
	SavePath string
	Version  string
	Logger   *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Ingress IngressHandler
	Status  StatusHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SavePath),
		Ingress: NewIngressHandler(deps.Store, deps.Logger),
		Status:  NewStatusHandler(deps.Progress, deps.Runs),
	}
}

// RegisterRoutes registers all routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// agents post here; the path is fixed by deployed agents
	e.POST("/opcFileSave", handlers.Ingress.HandleFileSave)

	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)

	statusGroup := e.Group("/api")
	statusGroup.GET("/progress", handlers.Status.HandleProgress)
	statusGroup.GET("/runs", handlers.Status.HandleRuns)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, logger *slog.Logger, bodyLimit string) {
	if logger == nil {
		logger = logging.NewNop()
	}
	e.HTTPErrorHandler = NewErrorHandler(logger, false)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				logging.String(logging.FieldRequestID, v.RequestID),
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
}
