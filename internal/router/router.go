package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"casino_wallet/internal/api/handlers"
	"casino_wallet/internal/api/middlewares"
	"casino_wallet/internal/auth"
)

// New builds the HTTP routes. gatherer serves /metrics; nil falls back to the
// default registry.
func New(h *handlers.HTTPHandler, secret []byte, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.Logging(log))

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api", middlewares.Authentication(secret))
	{
		api.GET("/balance", h.GetBalance)
		api.GET("/transactions", h.ListTransactions)
		api.POST("/transactions", h.CreateTransaction)
		api.POST("/transactions/slots", h.CreateSlotTransaction)
		api.POST("/transactions/withdrawal", h.RequestWithdrawal)

		api.POST("/slots/spin", h.Spin)

		api.GET("/bookmaking/client/bets", h.ListBets)
		api.POST("/bookmaking/client/bets", h.PlaceBet)
		api.DELETE("/bookmaking/client/bets/:id", h.CancelBet)
		api.POST("/bookmaking/admin/outcomes/:id/settle",
			middlewares.RequireRole(auth.RoleAdmin), h.SettleOutcome)

		api.POST("/promo-codes/validate", h.ValidatePromo)
		api.POST("/promo-codes/apply", h.ApplyPromo)

		api.GET("/bonuses", h.ListBonuses)
		api.GET("/bonuses/:id/progress", h.BonusProgress)
		api.POST("/bonuses/withdrawal", h.WithdrawBonus)

		api.GET("/ws", h.Stream)
	}

	return r
}
