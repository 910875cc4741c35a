package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casino_wallet/internal/serviceerrs"
	"casino_wallet/internal/slots"
	"casino_wallet/internal/wallet"
)

func (h *HTTPHandler) GetBalance(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	balance, err := h.wallet.GetBalance(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, serviceerrs.Invalid(key + " must be a positive integer")
	}
	return v, nil
}

func (h *HTTPHandler) ListTransactions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		fail(c, err)
		return
	}
	pageSize, err := queryInt(c, "pageSize", h.pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.wallet.ListTransactions(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) CreateTransaction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req wallet.TransactionRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.wallet.CreateTransaction(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *HTTPHandler) CreateSlotTransaction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req wallet.TransactionRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.wallet.CreateSlotTransaction(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *HTTPHandler) RequestWithdrawal(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req wallet.WithdrawalRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.wallet.RequestWithdrawal(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *HTTPHandler) Spin(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req slots.SpinRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.slots.Spin(c.Request.Context(), uid, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
