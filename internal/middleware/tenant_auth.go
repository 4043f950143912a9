package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

type tenantContextKey string

const tenantCtxKey = tenantContextKey("tenant")

// tenantClaims is the JWT payload the property-management platform (the
// system of record for tenants) signs and presents on every request. It
// carries the same billing configuration domain.TenantView expects, so the
// middleware can hand services a fully-formed TenantView without ledgerd
// keeping its own tenant table.
type tenantClaims struct {
	jwt.RegisteredClaims
	TenantName      string `json:"tenant_name"`
	DefaultCurrency string `json:"default_currency"`
	FeePercent      int64  `json:"fee_percent"`
	HoldbackPercent int64  `json:"holdback_percent"`
	IsActive        bool   `json:"is_active"`
}

// TenantAuthMiddleware validates the platform-issued bearer token and injects
// the resulting domain.TenantView into the request context.
func TenantAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims := &tenantClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn("tenant token rejected", slog.String("error", errString(err)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing tenant subject"})
			return
		}

		tenant := domain.TenantView{
			ID:              domain.TenantID(claims.Subject),
			Name:            claims.TenantName,
			DefaultCurrency: domain.CurrencyCode(claims.DefaultCurrency),
			FeePercent:      claims.FeePercent,
			Payout:          domain.PayoutSettings{HoldbackPercent: claims.HoldbackPercent},
			IsActive:        claims.IsActive,
		}

		ctx := context.WithValue(c.Request.Context(), tenantCtxKey, tenant)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantFromCtx retrieves the authenticated tenant view injected by
// TenantAuthMiddleware.
func GetTenantFromCtx(ctx context.Context) (domain.TenantView, bool) {
	v, ok := ctx.Value(tenantCtxKey).(domain.TenantView)
	return v, ok
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
