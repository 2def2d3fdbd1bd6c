package app

import (
	"database/sql"

	"github.com/JakeFriedberg29/Patroller-sub001/assign"
	"github.com/JakeFriedberg29/Patroller-sub001/config"
	"github.com/JakeFriedberg29/Patroller-sub001/inflight"
	"github.com/JakeFriedberg29/Patroller-sub001/mailer"
	"github.com/go-chi/oauth"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Mailer      *mailer.Mailer
	Assigner    *assign.Reconciler
	AssignStore assign.Store
	InFlight    *inflight.Registry
}
