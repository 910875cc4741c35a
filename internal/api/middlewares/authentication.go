package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"casino_wallet/internal/auth"
	"casino_wallet/internal/logger"
)

const keyPrincipal = "principal"

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(auth.CookieName); err == nil {
		return cookie
	}
	return ""
}

// Authentication accepts a bearer token or the jwt-token cookie. Every
// failure gets the same 401 body.
func Authentication(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())

		token := tokenFrom(c)
		if token == "" {
			log.Debug("failed to find token in request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		p, err := auth.CheckToken(token, secret)
		if err != nil {
			log.Info("authentication failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		ctx := auth.WithPrincipal(c.Request.Context(), p)
		ctx = logger.WithContext(ctx, log.With(zap.String("user_id", p.UserID)))
		c.Request = c.Request.WithContext(ctx)
		c.Set(keyPrincipal, p)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		if p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func Principal(c *gin.Context) (auth.Principal, bool) {
	if v, ok := c.Get(keyPrincipal); ok {
		if p, ok := v.(auth.Principal); ok {
			return p, true
		}
	}
	return auth.FromContext(c.Request.Context())
}
