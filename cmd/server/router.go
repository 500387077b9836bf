package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/handler"
	"github.com/nyumbani/smartsearch/internal/metrics"
)

// pinger reports whether the catalog database is reachable
type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        pinger
	search    *handler.SearchHandler
	locations *handler.LocationHandler
	gazetteer string
	provider  string
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestLogger(d.logger))
	router.Use(metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.cfg.AllowedOrigins()
	corsConfig.AllowMethods = d.cfg.AllowedMethods()
	corsConfig.AllowHeaders = d.cfg.AllowedHeaders()
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		database := "up"
		if err := d.db.Ping(ctx); err != nil {
			status, code, database = "degraded", http.StatusServiceUnavailable, "down"
		}
		c.JSON(code, gin.H{
			"status":            status,
			"service":           "smart-search",
			"database":          database,
			"ai_provider":       d.provider,
			"ai_enabled":        d.cfg.AIEnabled(),
			"gazetteer_version": d.gazetteer,
			"version":           Version,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		properties := apiV1.Group("/properties")
		properties.POST("/smart-search", d.search.SmartSearch)
		properties.POST("/smart-search/stream", d.search.SmartSearchStream)
		properties.POST("/similar", d.search.Similar)
		properties.POST("/recommendations", d.search.Recommendations)
		properties.POST("/:id/update-embedding", d.search.UpdateEmbedding)
		properties.POST("/:id/generate-tags", d.search.GenerateTags)

		apiV1.GET("/locations/match", d.locations.Match)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	})

	return router
}
