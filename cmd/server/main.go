package main

import (
	"log"

	"github.com/DaniBoe/fake-checker/app"
	"github.com/DaniBoe/fake-checker/app/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var store app.Store
	if cfg.DB.URL == "" {
		log.Println("POSTGRES_URL not set; using in-memory store")
		store = app.NewMemStore()
	} else {
		store, err = app.OpenPostgres(cfg)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
	}

	app.InitStripe(cfg)

	api := app.NewAPI(cfg, store, app.NewClassifierFromConfig(cfg))
	router, err := app.NewRouter(api)
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	router.Run("0.0.0.0:" + cfg.Server.Port)
}
