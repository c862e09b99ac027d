// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/loans/app/services/loans/handlers/v1/portalgrp"
	"github.com/ardanlabs/loans/business/core/portal"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/ardanlabs/loans/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log      *zap.SugaredLogger
	Portal   *portal.Portal
	Keystore *wallet.Keystore
	Evts     *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	pgh := portalgrp.Handlers{
		Log:      cfg.Log,
		Portal:   cfg.Portal,
		Keystore: cfg.Keystore,
		WS:       websocket.Upgrader{},
		Evts:     cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pgh.Events)
	app.Handle(http.MethodGet, version, "/wallets", pgh.Wallets)
	app.Handle(http.MethodPost, version, "/wallets", pgh.GenerateWallet)
	app.Handle(http.MethodGet, version, "/status", pgh.Status)
	app.Handle(http.MethodPost, version, "/session/connect", pgh.Connect)
	app.Handle(http.MethodPost, version, "/session/disconnect", pgh.Disconnect)
	app.Handle(http.MethodPost, version, "/identity/register", pgh.Register)
	app.Handle(http.MethodPost, version, "/subscription/subscribe", pgh.Subscribe)
	app.Handle(http.MethodPost, version, "/subscription/unsubscribe", pgh.Unsubscribe)
	app.Handle(http.MethodPost, version, "/blocks/toggle", pgh.ToggleBlocks)
	app.Handle(http.MethodPost, version, "/blocks/check", pgh.CheckBlocks)
	app.Handle(http.MethodPost, version, "/notify/test", pgh.SendTest)
}
