package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
	"github.com/leozw/farm-guardian/internal/predictions"
)

type CreateFarmRequest struct {
	AccountID          int64                 `json:"accountId" binding:"required,min=1"`
	ChannelName        string                `json:"channelName" binding:"required,min=1,max=255"`
	ChannelID          string                `json:"channelId"`
	ProfileImage       string                `json:"profileImage"`
	Features           db.Features           `json:"features"`
	PredictionSettings db.PredictionSettings `json:"predictionSettings"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active warning error offline"`
}

type ClaimPointsRequest struct {
	Points int64 `json:"points" binding:"required,gt=0"`
}

type WatchTimeRequest struct {
	Seconds int64 `json:"seconds" binding:"required,gt=0"`
}

type PlacePredictionRequest struct {
	Prediction predictions.Prediction `json:"prediction" binding:"required"`
	Balance    int64                  `json:"balance" binding:"min=0"`
}

func (h *Handler) ListFarms(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("accountId"); raw != "" {
		accountID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid accountId"})
			return
		}
		list, err := h.farms.ListFarmsByAccount(ctx, accountID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"farms": list})
		return
	}

	c.JSON(http.StatusOK, gin.H{"farms": h.farms.ListFarms(ctx)})
}

func (h *Handler) CreateFarm(c *gin.Context) {
	var req CreateFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.farms.CreateFarm(c.Request.Context(), farms.CreateFarmInput{
		AccountID:          req.AccountID,
		ChannelName:        req.ChannelName,
		ChannelID:          req.ChannelID,
		ProfileImage:       req.ProfileImage,
		Features:           req.Features,
		PredictionSettings: req.PredictionSettings,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, farm)
}

func (h *Handler) GetFarm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	farm, err := h.farms.GetFarm(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, farm)
}

func (h *Handler) UpdateFarm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch db.FarmPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.farms.UpdateFarm(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, farm)
}

func (h *Handler) DeleteFarm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.farms.DeleteFarm(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetFarmStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.farms.SetStatus(c.Request.Context(), id, db.FarmStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, farm)
}

func (h *Handler) ClaimPoints(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ClaimPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.farms.ClaimPoints(c.Request.Context(), id, req.Points)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, farm)
}

func (h *Handler) AccrueWatchTime(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req WatchTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	farm, err := h.farms.AccrueWatchTime(c.Request.Context(), id, req.Seconds)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, farm)
}

// PlacePrediction decides on the given prediction with the farm's own
// settings and records the outcome in the activity log.
func (h *Handler) PlacePrediction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req PlacePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	farm, err := h.farms.GetFarm(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	decision := h.engine.Decide(req.Prediction, farm.PredictionSettings, req.Balance)
	h.metrics.RecordDecision(decision.Strategy, decision.NoBet, decision.Payout)

	var title string
	for _, o := range req.Prediction.Outcomes {
		if o.ID == decision.OutcomeID {
			title = o.Title
		}
	}

	log, err := h.farms.RecordPrediction(ctx, id, farms.PredictionRecord{
		PredictionID: req.Prediction.ID,
		Title:        req.Prediction.Title,
		Strategy:     decision.Strategy,
		OutcomeID:    decision.OutcomeID,
		OutcomeTitle: title,
		Bet:          decision.Bet,
		Payout:       decision.Payout,
		NoBet:        decision.NoBet,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"decision": decision, "log": log})
}
