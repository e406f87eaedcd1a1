package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/predictions"
)

type DecideRequest struct {
	Prediction        predictions.Prediction `json:"prediction" binding:"required"`
	Strategy          string                 `json:"strategy" binding:"required,oneof=random majority percentage custom"`
	FavorableOddsOnly bool                   `json:"favorableOddsOnly"`
	MaxPoints         int64                  `json:"maxPoints" binding:"omitempty,min=100"`
	Balance           int64                  `json:"balance" binding:"min=0"`
}

type PayoutRequest struct {
	Prediction predictions.Prediction `json:"prediction" binding:"required"`
	OutcomeID  string                 `json:"outcomeId" binding:"required"`
	Bet        int64                  `json:"bet" binding:"min=0"`
}

// Decide runs the decision engine without touching any farm.
func (h *Handler) Decide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxPoints := req.MaxPoints
	if maxPoints == 0 {
		maxPoints = db.MinPredictionPoints
	}

	decision := h.engine.Decide(req.Prediction, db.PredictionSettings{
		Strategy:          db.Strategy(req.Strategy),
		MaxPoints:         maxPoints,
		FavorableOddsOnly: req.FavorableOddsOnly,
	}, req.Balance)
	h.metrics.RecordDecision(decision.Strategy, decision.NoBet, decision.Payout)

	c.JSON(http.StatusOK, gin.H{
		"decision": decision,
		"odds":     predictions.Odds(req.Prediction),
	})
}

func (h *Handler) Payout(c *gin.Context) {
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcomeId": req.OutcomeID,
		"bet":       req.Bet,
		"payout":    predictions.CalculatePayout(req.Prediction, req.OutcomeID, req.Bet),
	})
}
