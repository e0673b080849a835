package app

import (
	"log"
	"net/http"
	"time"

	"github.com/DaniBoe/fake-checker/app/models"
	"github.com/DaniBoe/fake-checker/auth"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns the authenticated account's weekly usage and paid balance.
func (a *API) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	snapshot, err := usageSnapshot(c.Request.Context(), a.store, claims.Subject, time.Now())
	if err != nil {
		log.Printf("me lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accountId": claims.Subject,
		"usage": models.UsageStatsResponse{
			FreeChecksUsed:      snapshot.FreeChecksUsed,
			PaidChecksRemaining: snapshot.PaidChecksRemaining,
			WeeklyLimit:         a.policy.FreeWeeklyLimit(),
			IsLimited:           snapshot.FreeChecksUsed >= a.policy.FreeWeeklyLimit(),
		},
	})
}
