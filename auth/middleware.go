// Package auth provides Gin middleware for enforcing bearer-token auth.
package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	// Optional lets requests without an Authorization header through as
	// anonymous. A presented token must still verify.
	Optional bool
	// OnAuthenticated runs once per request after a token verifies, before
	// the handler; an error fails the request.
	OnAuthenticated func(c *gin.Context, claims *Claims) error
}

// Middleware verifies bearer tokens and injects claims into the request
// context.
func Middleware(verifier *Verifier, cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if AuthDisabled() {
			if cfg.Optional && authHeader == "" {
				c.Next()
				return
			}
			claims := &Claims{
				Subject: "local-dev",
				Issuer:  "local",
				Raw:     map[string]any{"sub": "local-dev"},
			}
			if !acceptClaims(c, claims, cfg) {
				return
			}
			c.Next()
			return
		}

		if authHeader == "" {
			if cfg.Optional {
				c.Next()
				return
			}
			log.Printf("auth failure: missing Authorization header path=%s", c.Request.URL.Path)
			respondUnauthorized(c, "missing authorization header")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			log.Printf("auth failure: malformed Authorization header path=%s", c.Request.URL.Path)
			respondUnauthorized(c, "invalid authorization header")
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Printf("auth failure: token invalid path=%s err=%v", c.Request.URL.Path, err)
			respondUnauthorized(c, "invalid token")
			return
		}

		if !acceptClaims(c, claims, cfg) {
			return
		}
		c.Next()
	}
}

func acceptClaims(c *gin.Context, claims *Claims, cfg MiddlewareConfig) bool {
	if cfg.OnAuthenticated != nil {
		if err := cfg.OnAuthenticated(c, claims); err != nil {
			log.Printf("auth callback failed sub=%s err=%v", claims.Subject, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to prepare account",
			})
			return false
		}
	}
	c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
	return true
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
