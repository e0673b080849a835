package app

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/DaniBoe/fake-checker/app/models"
	"github.com/DaniBoe/fake-checker/auth"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 8 * 1024 * 1024 // 8MB

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/heic": true,
	"image/heif": true,
	"image/webp": true,
}

// callerFromRequest builds the quota caller: verified account id when a
// token was presented, plus the privacy-preserving fingerprint.
func (a *API) callerFromRequest(c *gin.Context) Caller {
	fp := ClientFingerprint(c.Request, a.cfg.Fingerprint.IPSalt, a.cfg.Fingerprint.UASalt)
	caller := Caller{IPHash: fp.IPHash, UAHash: fp.UAHash}
	if claims, ok := auth.ClaimsFromContext(c.Request.Context()); ok {
		caller.AccountID = claims.Subject
	}
	return caller
}

// CheckImage accepts an image upload, applies the quota policy, runs the
// classifier and returns the verdict with a usage snapshot.
func (a *API) CheckImage(c *gin.Context) {
	caller := a.callerFromRequest(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	admitted, err := a.policy.Admit(ctx, caller)
	if err != nil {
		a.rejectCheck(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	header := files[0]
	mime := header.Header.Get("Content-Type")
	if !allowedMime[mime] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type"})
		return
	}
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()
	buf, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	if len(buf) > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	meta := make(map[string]string, len(form.Value)+1)
	for name, values := range form.Value {
		if len(values) > 0 {
			meta[name] = values[0]
		}
	}
	filename := header.Filename
	if filename == "" {
		filename = "upload"
	}
	meta["filename"] = filename

	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf)
	result := a.classify(ctx, dataURL, meta)

	usage, err := a.policy.Settle(ctx, caller, admitted)
	if err != nil {
		log.Printf("usage settlement failed ip=%s err=%v", caller.IPHash, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
		return
	}

	c.JSON(http.StatusOK, models.CheckResponse{
		Classification: result,
		Usage:          usage,
	})
}

// classify delegates to the configured provider and degrades to the local
// heuristic whenever the provider fails, so a well-formed verdict always
// comes back.
func (a *API) classify(ctx context.Context, imageRef string, meta map[string]string) models.Classification {
	result, err := a.classifier.Classify(ctx, imageRef, meta)
	if err != nil {
		log.Printf("classifier failed, using heuristic fallback: %v", err)
		result, _ = HeuristicClassifier{}.Classify(ctx, imageRef, meta)
	}
	return result
}

func (a *API) rejectCheck(c *gin.Context, err error) {
	var paywall *PaywallError
	switch {
	case errors.Is(err, ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
	case errors.Is(err, ErrSuspicious):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Suspicious activity detected. Please contact support."})
	case errors.As(err, &paywall):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": "Paywall",
			"usage": paywall.Usage,
		})
	default:
		log.Printf("quota check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evaluate quota"})
	}
}

// UsageStats returns the caller's weekly free usage and paid balance.
// Pure read, no side effects.
func (a *API) UsageStats(c *gin.Context) {
	caller := a.callerFromRequest(c)

	snapshot, err := usageSnapshot(c.Request.Context(), a.store, caller.AccountID, time.Now())
	if err != nil {
		log.Printf("usage stats failed ip=%s err=%v", caller.IPHash, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}

	c.JSON(http.StatusOK, models.UsageStatsResponse{
		FreeChecksUsed:      snapshot.FreeChecksUsed,
		PaidChecksRemaining: snapshot.PaidChecksRemaining,
		WeeklyLimit:         a.policy.FreeWeeklyLimit(),
		IsLimited:           snapshot.FreeChecksUsed >= a.policy.FreeWeeklyLimit(),
	})
}

// ListPackages returns the static purchasable bundle catalog.
func (a *API) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": Packages()})
}
