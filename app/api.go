package app

import (
	"github.com/DaniBoe/fake-checker/app/config"
)

// API bundles the constructed collaborators every handler needs. The store
// and classifier are passed in; lifecycle belongs to the entrypoint.
type API struct {
	cfg        *config.Config
	store      Store
	classifier Classifier
	policy     *QuotaPolicy
}

func NewAPI(cfg *config.Config, store Store, classifier Classifier) *API {
	return &API{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		policy:     NewQuotaPolicy(store, cfg),
	}
}
