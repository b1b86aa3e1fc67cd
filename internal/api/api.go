// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/api/handlers"
	"github.com/andresuchdata/autodrp/backend-go/internal/api/middleware"
	"github.com/andresuchdata/autodrp/backend-go/internal/pipeline"
	"github.com/andresuchdata/autodrp/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Services struct {
	Planner *service.Planner
	// Jobs runs the minimum-stock job; nil disables the job endpoints
	Jobs *pipeline.Worker
}

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	AllowedOrigins []string

	// RateLimit is requests/second across all clients; 0 disables limiting
	RateLimit float64
	RateBurst int
}

func NewRouter(services *Services, opts RouterOptions) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		router.Use(middleware.RateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), burst)))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Planner != nil {
		drpHandler := handlers.NewDRPHandler(services.Planner, services.Jobs)
		drpGroup := apiGroup.Group("/drp")
		{
			drpGroup.POST("/allocations", drpHandler.PlanAllocation)
			drpGroup.POST("/allocations/batch", drpHandler.PlanBatch)
			drpGroup.POST("/receipts", drpHandler.PlanReceipt)
			drpGroup.GET("/profiles", drpHandler.GetProfiles)
			drpGroup.DELETE("/cache", drpHandler.InvalidateCache)
			drpGroup.DELETE("/cache/:product_id", drpHandler.InvalidateCache)

			jobGroup := drpGroup.Group("/jobs/minimum-stock")
			{
				jobGroup.POST("", drpHandler.StartMinimumStockJob)
				jobGroup.GET("/:id", drpHandler.GetMinimumStockJob)
			}
		}
	}

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	cfg := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			cfg.AllowOrigins = nil
			cfg.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			cfg.AllowOrigins = normalizedOrigins
		}
	}
	return cfg
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
