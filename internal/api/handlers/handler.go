package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/activity"
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
	"github.com/leozw/farm-guardian/internal/metrics"
	"github.com/leozw/farm-guardian/internal/predictions"
)

type Handler struct {
	farms   *farms.Service
	sink    *activity.Sink
	engine  *predictions.Engine
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewHandler(svc *farms.Service, sink *activity.Sink, engine *predictions.Engine, metrics *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{
		farms:   svc,
		sink:    sink,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var nf *db.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}

	var ve *db.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}

	h.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}
