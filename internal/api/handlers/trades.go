package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-tradein/backend/internal/logger"
	"github.com/codyseavey/tcg-tradein/backend/internal/models"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

type TradeHandler struct {
	processor   *services.TradeProcessor
	submissions services.SubmissionStore
	log         *logger.Logger
}

func NewTradeHandler(processor *services.TradeProcessor, submissions services.SubmissionStore) *TradeHandler {
	return &TradeHandler{
		processor:   processor,
		submissions: submissions,
		log:         logger.Named("http"),
	}
}

// Estimate prices a batch without side effects
func (h *TradeHandler) Estimate(c *gin.Context) {
	h.process(c, models.ModeEstimate)
}

// Commit prices a batch, takes the cards into inventory and pays out
func (h *TradeHandler) Commit(c *gin.Context) {
	h.process(c, models.ModeCommit)
}

func (h *TradeHandler) process(c *gin.Context, mode models.BatchMode) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Mode = mode

	result, err := h.processor.ProcessBatch(c.Request.Context(), req)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, services.ErrPayoutFailure):
			// Inventory has already been adjusted; the partial batch tells staff what happened
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "batch": result})
		default:
			h.log.Error().Err(err).Str("mode", string(mode)).Msg("batch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTrade returns a saved commit-mode batch
func (h *TradeHandler) GetTrade(c *gin.Context) {
	if h.submissions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submissions are not stored"})
		return
	}

	result, err := h.submissions.GetSubmission(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrSubmissionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
