package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

type CardHandler struct {
	resolver *services.Resolver
	rates    *services.RateSchedule
}

func NewCardHandler(resolver *services.Resolver, rates *services.RateSchedule) *CardHandler {
	return &CardHandler{
		resolver: resolver,
		rates:    rates,
	}
}

type resolveRequest struct {
	CardName string `json:"card_name"`
	SKU      string `json:"sku"`
}

type resolveResponse struct {
	Result   models.ResolutionResult `json:"result"`
	Quote    *services.Quote         `json:"quote,omitempty"`
	Source   services.CacheSource    `json:"source,omitempty"`
	TimedOut bool                    `json:"timed_out"`
	Audit    []models.AuditEntry     `json:"audit"`
}

// ResolveCard looks up one card with the preview time budget. Nothing is
// written to inventory.
func (h *CardHandler) ResolveCard(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.CardName) == "" && strings.TrimSpace(req.SKU) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_name or sku is required"})
		return
	}

	q := models.CardQuery{RawName: req.CardName, SuppliedSKU: req.SKU, Quantity: 1}
	res := h.resolver.Resolve(c.Request.Context(), q, services.ResolveOptions{Preview: true})

	resp := resolveResponse{
		Result:   res.Result,
		Source:   res.Source,
		TimedOut: res.TimedOut,
		Audit:    res.Audit,
	}
	if res.Result.Found && res.Result.Variant != nil {
		quote := h.rates.Quote(res.Result.Variant.Price)
		resp.Quote = &quote
	}
	c.JSON(http.StatusOK, resp)
}
