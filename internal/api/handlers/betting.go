package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casino_wallet/internal/betting"
)

type settleRequest struct {
	Result betting.Result `json:"result"`
}

func (h *HTTPHandler) ListBets(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	bets, err := h.betting.ListBets(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

func (h *HTTPHandler) PlaceBet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req betting.PlaceBetRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.betting.PlaceBet(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *HTTPHandler) CancelBet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	res, err := h.betting.CancelBet(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) SettleOutcome(c *gin.Context) {
	var req settleRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.betting.SettleOutcome(c.Request.Context(), c.Param("id"), req.Result)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
