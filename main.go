package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/assign"
	"github.com/JakeFriedberg29/Patroller-sub001/config"
	"github.com/JakeFriedberg29/Patroller-sub001/database"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/inflight"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/mailer"
	"github.com/JakeFriedberg29/Patroller-sub001/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	bearerServer := httpx.NewBearerServer(db, cfg)

	assignStore := assign.NewSQLStore(db)

	app := app.App{
		DB:           db,
		BearerServer: bearerServer,
		Config:       cfg,

		Mailer:      buildMailer(cfg.Mail),
		Assigner:    assign.NewReconciler(assignStore),
		AssignStore: assignStore,
		InFlight:    inflight.NewRegistry(),
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

// buildMailer wires the configured providers; with no primary endpoint
// activation mail is skipped and reported as unsent.
func buildMailer(cfg config.MailConfig) *mailer.Mailer {
	if cfg.PrimaryURL == "" {
		log.Warn("main.mailer: no primary provider configured, activation mail disabled")
		return nil
	}

	primary := mailer.NewHTTPProvider("primary", cfg.PrimaryURL, cfg.PrimaryKey, cfg.From)

	var secondary mailer.Provider
	if cfg.SecondaryURL != "" {
		secondary = mailer.NewHTTPProvider("secondary", cfg.SecondaryURL, cfg.SecondaryKey, cfg.From)
	}

	return mailer.New(primary, secondary)
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
