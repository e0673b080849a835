package app

import (
	"time"

	"github.com/DaniBoe/fake-checker/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter(api *API) (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", Health)
	router.GET("/api/packages", api.ListPackages)
	router.POST("/api/stripe/webhook", api.StripeWebhook)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	onAuthenticated := func(c *gin.Context, claims *auth.Claims) error {
		return api.EnsureAccountFromClaims(c.Request.Context(), claims)
	}

	// Check and usage endpoints serve anonymous callers too; a presented
	// token still has to verify.
	public := router.Group("/")
	public.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		Optional:        true,
		OnAuthenticated: onAuthenticated,
	}))
	public.POST("/api/check", api.CheckImage)
	public.GET("/api/usage", api.UsageStats)

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: onAuthenticated,
	}))
	protected.GET("/me", api.Me)
	protected.POST("/api/billing/create-checkout-session", api.CreateCheckoutSession)

	return router, nil
}
