package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type promoRequest struct {
	Code string `json:"code"`
}

type bonusWithdrawalRequest struct {
	BonusID string          `json:"bonusId"`
	Amount  decimal.Decimal `json:"amount"`
}

func (h *HTTPHandler) ValidatePromo(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req promoRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.bonuses.Validate(c.Request.Context(), uid, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "promo": res})
}

func (h *HTTPHandler) ApplyPromo(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req promoRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.bonuses.Apply(c.Request.Context(), uid, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) ListBonuses(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	bonuses, err := h.bonuses.ListBonuses(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": bonuses})
}

func (h *HTTPHandler) BonusProgress(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	res, err := h.bonuses.WageringProgress(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) WithdrawBonus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req bonusWithdrawalRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.bonuses.WithdrawBonus(c.Request.Context(), uid, req.BonusID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
