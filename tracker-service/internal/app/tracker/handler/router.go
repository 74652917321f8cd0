package handler

import (
	"net/http"
	"time"

	"pricetrack/pkg/logger"
	"pricetrack/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires the tracker API.
func SetupRoutes(trackerHandler *TrackerHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware("tracker-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "tracker-service",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	products := router.Group("/products")
	{
		products.GET("", trackerHandler.GetProducts)
		products.GET("/:id", trackerHandler.GetProduct)
		products.GET("/:id/prices", trackerHandler.GetPriceHistory)
		products.GET("/:id/prices/latest", trackerHandler.GetLatestPrice)
		products.GET("/:id/suggestions", trackerHandler.GetSuggestions)
	}

	groups := router.Group("/groups")
	{
		groups.GET("", trackerHandler.GetGroups)
		groups.GET("/:id", trackerHandler.GetGroup)
		groups.POST("/assign", trackerHandler.AssignToGroup)
		groups.DELETE("/members/:product_id", trackerHandler.RemoveFromGroup)
	}

	favorites := router.Group("/favorites")
	{
		favorites.GET("", trackerHandler.GetFavorites)
		favorites.POST("", trackerHandler.AddFavorite)
		favorites.DELETE("/:product_id", trackerHandler.RemoveFavorite)
	}

	runs := router.Group("/runs")
	{
		runs.POST("", trackerHandler.TriggerRun)
		runs.GET("/last", trackerHandler.GetLastRun)
	}

	router.GET("/stats", trackerHandler.GetStats)

	return router
}
