package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/portal-sync/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbHealthy, brokerHealthy := true, true

		if deps.DBClient != nil && deps.DBClient.HealthCheck(c.Request.Context()) != nil {
			dbHealthy = false
			status = http.StatusServiceUnavailable
		}
		if deps.RabbitClient != nil && !deps.RabbitClient.IsConnected() {
			brokerHealthy = false
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"service":  "portal-sync-api",
			"database": dbHealthy,
			"broker":   brokerHealthy,
		})
	})

	syncHandler := handler.NewSyncHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/credentials - Cache portal credentials
		v1.POST("/credentials", syncHandler.SaveCredentials)

		sync := v1.Group("/sync")
		{
			// POST /api/v1/sync - Enqueue a sync job
			sync.POST("", syncHandler.CreateSync)

			// GET /api/v1/sync/jobs - List sync jobs with pagination
			sync.GET("/jobs", syncHandler.ListJobs)

			// GET /api/v1/sync/jobs/:job_id - Get sync job status
			sync.GET("/jobs/:job_id", syncHandler.GetJob)
		}
	}

	return r
}
