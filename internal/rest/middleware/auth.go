package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/auth"
	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

const (
	// CtxClaims is the gin context key holding the verified claims
	CtxClaims = "verified_claims"

	bearerPrefix = "Bearer "
)

// BearerAuth verifies the bearer token and binds the claims to the
// request context. Routes carrying an :appId parameter additionally
// require the token's appId to match the route.
func BearerAuth(engine *auth.TokenEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(types.HeaderAuthorization)
		if header == "" {
			abortUnauthorized(c, "Missing Authorization header")
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, "Malformed Authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			abortUnauthorized(c, "Empty bearer token")
			return
		}

		claims, err := engine.Verify(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		if routeAppID := c.Param("appId"); routeAppID != "" && routeAppID != claims.AppID {
			_ = c.Error(ierr.NewError("route appId mismatch").
				WithHint("JWT appId does not match route appId").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, types.CtxAppID, claims.AppID)
		if claims.TeamID != "" {
			ctx = context.WithValue(ctx, types.CtxTeamID, claims.TeamID)
		}
		if claims.UserID != "" {
			ctx = context.WithValue(ctx, types.CtxUserID, claims.UserID)
		}
		ctx = context.WithValue(ctx, types.CtxScopes, claims.Scopes)
		c.Request = c.Request.WithContext(ctx)
		c.Set(CtxClaims, claims)

		c.Next()
	}
}

// RequireScope enforces a token scope on top of BearerAuth
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !types.HasScope(c.Request.Context(), scope) {
			_ = c.Error(ierr.NewError("missing scope").
				WithHintf("Token does not carry the %s scope", scope).
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminKeyAuth guards admin routes with a constant-time key compare
func AdminKeyAuth(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(types.HeaderAdminAPIKey)
		if key == "" {
			abortForbidden(c, "Missing admin API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Auth.AdminAPIKey)) != 1 {
			abortForbidden(c, "Invalid admin API key")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	_ = c.Error(ierr.NewError(msg).WithHint(msg).Mark(ierr.ErrUnauthorized))
	c.Abort()
}

func abortForbidden(c *gin.Context, msg string) {
	_ = c.Error(ierr.NewError(msg).WithHint(msg).Mark(ierr.ErrPermissionDenied))
	c.Abort()
}
