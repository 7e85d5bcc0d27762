package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crs-prediction-api/services"
)

func Health(cache *services.CacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "CRS Prediction API is running",
			"cache":   cache.Available(),
		})
	}
}
