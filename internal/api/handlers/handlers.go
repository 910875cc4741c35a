package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"casino_wallet/internal/api/middlewares"
	"casino_wallet/internal/betting"
	"casino_wallet/internal/bonus"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/logger"
	"casino_wallet/internal/notify"
	"casino_wallet/internal/serviceerrs"
	"casino_wallet/internal/slots"
	"casino_wallet/internal/wallet"
)

type WalletService interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID string, page, pageSize int) (*ledger.Page, error)
	CreateTransaction(ctx context.Context, userID string, req wallet.TransactionRequest) (*wallet.TransactionResponse, error)
	CreateSlotTransaction(ctx context.Context, userID string, req wallet.TransactionRequest) (*wallet.TransactionResponse, error)
	RequestWithdrawal(ctx context.Context, userID string, req wallet.WithdrawalRequest) (*wallet.TransactionResponse, error)
}

type SlotsService interface {
	Spin(ctx context.Context, userID string, req slots.SpinRequest) (*slots.SpinResult, error)
}

type BettingService interface {
	PlaceBet(ctx context.Context, userID string, req betting.PlaceBetRequest) (*betting.PlaceBetResponse, error)
	CancelBet(ctx context.Context, userID, betID string) (*betting.CancelBetResponse, error)
	SettleOutcome(ctx context.Context, outcomeID string, result betting.Result) (*betting.Settlement, error)
	ListBets(ctx context.Context, userID string) ([]betting.Bet, error)
}

type BonusService interface {
	Validate(ctx context.Context, userID, code string) (*bonus.PromoSummary, error)
	Apply(ctx context.Context, userID, code string) (*bonus.ApplyResult, error)
	WithdrawBonus(ctx context.Context, userID, bonusID string, amount decimal.Decimal) (*bonus.WithdrawalResult, error)
	ListBonuses(ctx context.Context, userID string) ([]bonus.Bonus, error)
	WageringProgress(ctx context.Context, userID, bonusID string) (*bonus.WageringProgress, error)
}

type Subscriber interface {
	Subscribe(userID string) (<-chan notify.Event, func())
}

type HTTPHandler struct {
	wallet   WalletService
	slots    SlotsService
	betting  BettingService
	bonuses  BonusService
	events   Subscriber
	pageSize int
}

func New(w WalletService, s SlotsService, b BettingService, bonuses BonusService, events Subscriber, pageSize int) *HTTPHandler {
	return &HTTPHandler{
		wallet:   w,
		slots:    s,
		betting:  b,
		bonuses:  bonuses,
		events:   events,
		pageSize: pageSize,
	}
}

func statusOf(err error) int {
	switch {
	case serviceerrs.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, serviceerrs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, serviceerrs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, serviceerrs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, serviceerrs.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the JSON error body for err. Internal errors are logged and
// reported without detail.
func fail(c *gin.Context, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func userID(c *gin.Context) (string, bool) {
	p, ok := middlewares.Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return "", false
	}
	return p.UserID, true
}

func (h *HTTPHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
