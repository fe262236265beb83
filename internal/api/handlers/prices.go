package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
	"github.com/codyseavey/tcg-tradein/backend/internal/services"
)

type PriceHandler struct {
	rates *services.RateSchedule
}

func NewPriceHandler(rates *services.RateSchedule) *PriceHandler {
	return &PriceHandler{
		rates: rates,
	}
}

// GetQuote returns the trade-in values for a single market price
func (h *PriceHandler) GetQuote(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("price"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'price' is required"})
		return
	}

	price, err := models.ParseMoney(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a decimal amount"})
		return
	}
	if price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	c.JSON(http.StatusOK, h.rates.Quote(price))
}
