package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tcg-tradein/backend/internal/api/handlers"
	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/metrics"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

// RouterDeps are the services the HTTP layer calls into
type RouterDeps struct {
	Resolver       *services.Resolver
	Rates          *services.RateSchedule
	Processor      *services.TradeProcessor
	Submissions    services.SubmissionStore
	AllowedOrigins []string
	FrontendPath   string
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), requestMetrics())

	serveFrontend := deps.FrontendPath != "" && dirExists(deps.FrontendPath)

	config := cors.DefaultConfig()
	if len(deps.AllowedOrigins) > 0 {
		config.AllowOrigins = deps.AllowedOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	cardHandler := handlers.NewCardHandler(deps.Resolver, deps.Rates)
	priceHandler := handlers.NewPriceHandler(deps.Rates)
	tradeHandler := handlers.NewTradeHandler(deps.Processor, deps.Submissions)

	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.POST("/resolve", cardHandler.ResolveCard)
		}

		prices := api.Group("/prices")
		{
			prices.GET("/quote", priceHandler.GetQuote)
		}

		trades := api.Group("/trades")
		{
			trades.POST("/estimate", tradeHandler.Estimate)
			trades.POST("/commit", tradeHandler.Commit)
			trades.GET("/:id", tradeHandler.GetTrade)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if serveFrontend {
		indexPath := filepath.Join(deps.FrontendPath, "index.html")

		router.Static("/assets", filepath.Join(deps.FrontendPath, "assets"))
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

// requestMetrics records request counts and latency by route template
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func requestLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
