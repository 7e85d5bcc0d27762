package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crs-prediction-api/models"
	"crs-prediction-api/services"
	"crs-prediction-api/stats"
	"crs-prediction-api/store"
)

const drawsCacheTTL = 30 * time.Second

type DrawsHandler struct {
	loader store.Loader
	cache  *services.CacheService
}

func NewDrawsHandler(loader store.Loader, cache *services.CacheService) *DrawsHandler {
	return &DrawsHandler{loader: loader, cache: cache}
}

// GetDraws lists draws most recent first with cursor pagination. category
// accepts either a short name (CEC) or an IRCC draw name.
func (h *DrawsHandler) GetDraws(c *gin.Context) {
	p := ParsePagination(c)

	category := c.Query("category")
	if category != "" {
		category = stats.NormalizeCategory(category)
	}
	beforeStr := ""
	if p.Before != nil {
		beforeStr = p.Before.String()
	}
	cacheKey := fmt.Sprintf("draws:%s:%d:%s", category, p.Limit, beforeStr)

	var cached CursorResponse
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := h.loader.QueryDraws(c.Request.Context(), store.DrawQuery{
		Category: category,
		Before:   p.Before,
		Limit:    p.Limit + 1,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "draw history unavailable"})
		return
	}

	if rows == nil {
		rows = []models.Draw{}
	}
	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = store.CursorAt(rows[len(rows)-1]).String()
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, drawsCacheTTL)

	c.JSON(http.StatusOK, resp)
}
