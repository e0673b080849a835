package app

import (
	"context"
	"errors"

	"github.com/DaniBoe/fake-checker/app/config"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
)

// Package is one purchasable bundle of checks. The catalog is static
// configuration, not computed.
type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Checks      int    `json:"checks"`
	AmountCents int64  `json:"amountCents"`
}

var packageCatalog = []Package{
	{ID: "starter", Name: "Starter Pack", Checks: 10, AmountCents: 799},
	{ID: "value", Name: "Value Pack", Checks: 40, AmountCents: 2999},
	{ID: "pro", Name: "Pro Pack", Checks: 80, AmountCents: 5599},
}

// Packages returns the purchasable package catalog.
func Packages() []Package {
	out := make([]Package, len(packageCatalog))
	copy(out, packageCatalog)
	return out
}

// PackageByID looks a package up; ok is false for unknown ids.
func PackageByID(id string) (Package, bool) {
	for _, p := range packageCatalog {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// InitStripe wires the Stripe API key from configuration.
func InitStripe(cfg *config.Config) {
	stripe.Key = cfg.Stripe.SecretKey
}

// ensureStripeCustomer finds or creates a Stripe Customer for the account.
// A created customer carries metadata account_id = <accountID> and is stored
// back on the account row.
func (a *API) ensureStripeCustomer(ctx context.Context, accountID, email string) (string, error) {
	if accountID == "" {
		return "", errors.New("missing account id")
	}

	customerID, err := a.store.StripeCustomerID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"account_id": accountID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	if err := a.store.SetStripeCustomerID(ctx, accountID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
