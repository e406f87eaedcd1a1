package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leozw/farm-guardian/internal/db"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

type PredictionRateRequest struct {
	Rate *float64 `json:"rate" binding:"required"`
}

// ListLogs returns the newest activity first, optionally filtered by
// accountId or channel.
func (h *Handler) ListLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	var logs []db.Log
	switch {
	case c.Query("accountId") != "":
		accountID, err := strconv.ParseInt(c.Query("accountId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid accountId"})
			return
		}
		logs = h.sink.ByAccount(accountID, limit)
	case c.Query("channel") != "":
		logs = h.sink.ByChannel(c.Query("channel"), limit)
	default:
		logs = h.sink.Recent(limit)
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.farms.Stats(c.Request.Context()))
}

func (h *Handler) SetPredictionRate(c *gin.Context) {
	var req PredictionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.farms.SetPredictionRate(c.Request.Context(), *req.Rate))
}
