package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/DaniBoe/fake-checker/app/models"
	"github.com/DaniBoe/fake-checker/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

type checkoutRequest struct {
	PackageID string `json:"packageId"`
}

// CreateCheckoutSession starts a one-time Stripe Checkout for a check
// package on behalf of the authenticated account.
func (a *API) CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	pkg, ok := PackageByID(req.PackageID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown package"})
		return
	}

	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	if a.cfg.Stripe.SecretKey == "" || frontendURL == "" {
		log.Printf("missing Stripe config: secret=%t frontend_url=%t", a.cfg.Stripe.SecretKey != "", frontendURL != "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	email := readStringClaim(claims.Raw, "email")
	customerID, err := a.ensureStripeCustomer(c.Request.Context(), claims.Subject, email)
	if err != nil {
		log.Printf("ensureStripeCustomer failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(pkg.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pkg.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/?purchase=success"),
		CancelURL:  stripe.String(frontendURL + "/pricing?status=cancelled"),
		Metadata: map[string]string{
			"accountId": claims.Subject,
			"packageId": pkg.ID,
			"checks":    strconv.Itoa(pkg.Checks),
		},
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// StripeWebhook handles completed payments: it resolves or creates the
// purchasing account and credits the bought checks, idempotently keyed on
// the payment reference. Errors return non-2xx so Stripe redelivers.
func (a *API) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	endpointSecret := a.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Printf("stripe session unmarshal failed: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
			return
		}
		if err := a.creditCompletedCheckout(c.Request.Context(), &sess); err != nil {
			log.Printf("stripe purchase credit failed session=%s err=%v", sess.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply purchase"})
			return
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err == nil {
			log.Printf("stripe payment failed intent=%s", intent.ID)
		}
	default:
		// Intentionally ignore unhandled events.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// creditCompletedCheckout applies one completed checkout session. Safe to
// call again for the same session; the payment reference dedupes it.
func (a *API) creditCompletedCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	packageID := sess.Metadata["packageId"]
	checks, _ := strconv.Atoi(sess.Metadata["checks"])
	if packageID == "" || checks <= 0 {
		log.Printf("stripe session %s missing package metadata", sess.ID)
		return nil
	}

	accountID, err := a.resolvePurchaser(ctx, sess)
	if err != nil {
		return err
	}

	credited, err := a.store.ApplyPurchase(ctx, models.Purchase{
		PaymentRef:    paymentRef(sess),
		AccountID:     accountID,
		PackageID:     packageID,
		ChecksGranted: checks,
		AmountCents:   sess.AmountTotal,
	})
	if err != nil {
		return err
	}
	if !credited {
		log.Printf("stripe purchase replay ignored ref=%s", paymentRef(sess))
		return nil
	}

	log.Printf("credited %d checks to account %s for package %s", checks, accountID, packageID)
	return nil
}

// resolvePurchaser maps a checkout session to an account: session metadata
// first, then a profile matching the customer email, else a fresh guest
// account.
func (a *API) resolvePurchaser(ctx context.Context, sess *stripe.CheckoutSession) (string, error) {
	if accountID := sess.Metadata["accountId"]; accountID != "" {
		if err := a.store.EnsureAccount(ctx, accountID, checkoutEmail(sess)); err != nil {
			return "", err
		}
		return accountID, nil
	}

	email := checkoutEmail(sess)
	if email != "" {
		accountID, err := a.store.FindAccountByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		if accountID != "" {
			return accountID, nil
		}
	}

	accountID := uuid.NewString()
	if err := a.store.EnsureAccount(ctx, accountID, email); err != nil {
		return "", err
	}
	if sess.Customer != nil && sess.Customer.ID != "" {
		if err := a.store.SetStripeCustomerID(ctx, accountID, sess.Customer.ID); err != nil {
			return "", err
		}
	}
	return accountID, nil
}

func checkoutEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

// paymentRef picks the idempotency key for a session: the payment intent
// when present, else the session id.
func paymentRef(sess *stripe.CheckoutSession) string {
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		return sess.PaymentIntent.ID
	}
	return sess.ID
}
