package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"crs-prediction-api/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit  int
	Before *store.Cursor
}

type CursorResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// ParsePagination reads limit and before. before takes a next_cursor value
// ("<timestamp>|<number>") or a bare timestamp or date; anything
// unparseable is ignored.
func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		if cur, err := store.ParseCursor(beforeStr); err == nil {
			p.Before = &cur
		}
	}

	return p
}
