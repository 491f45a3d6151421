package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"extruder_hmi/internal/logger"
	"extruder_hmi/internal/service"
)

// Handler wires the dashboard-facing HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health and metrics endpoints
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket state stream for dashboards (same port)
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerTelemetryRoutes(api)
		h.registerAlarmRoutes(api)
		h.registerAcquisitionRoutes(api)
		// Pass-through to the backend command channel.
		api.POST("/command", h.sendCommand)
	}
}

func (h *Handler) registerTelemetryRoutes(api *gin.RouterGroup) {
	telemetry := api.Group("/telemetry")
	{
		telemetry.GET("/state", h.getState)
		// Query example: /history?since=2026-03-01T09:00:00Z
		telemetry.GET("/history", h.getHistory)
		telemetry.GET("/segments/:signal", h.getSegments)
		telemetry.GET("/phases", h.getPhases)
	}
}

func (h *Handler) registerAlarmRoutes(api *gin.RouterGroup) {
	alarms := api.Group("/alarms")
	{
		alarms.GET("/", h.getAlarms)
		// Query example: /gate?view=home
		alarms.GET("/gate", h.getAlarmGate)
	}
}

func (h *Handler) registerAcquisitionRoutes(api *gin.RouterGroup) {
	acq := api.Group("/acquisition")
	{
		// Body example: {"mode":"push"}
		acq.POST("/mode", h.setAcquisitionMode)
		acq.GET("/status", h.getAcquisitionStatus)
	}
}
