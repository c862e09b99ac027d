// Package portalgrp maintains the group of handlers for the portal.
package portalgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/loans/business/core/identity"
	"github.com/ardanlabs/loans/business/core/portal"
	"github.com/ardanlabs/loans/business/core/session"
	"github.com/ardanlabs/loans/business/core/subscription"
	"github.com/ardanlabs/loans/business/web/errs"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/ardanlabs/loans/foundation/validate"
	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/ardanlabs/loans/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// rules map core errors to the status returned to the caller.
var rules = []errs.Rule{
	{Target: wallet.ErrNotFound, Status: http.StatusNotFound},
	{Target: wallet.ErrExists, Status: http.StatusConflict},
	{Target: session.ErrNoAddress, Status: http.StatusBadRequest},
	{Target: portal.ErrNotConnected, Status: http.StatusPreconditionFailed},
	{Target: portal.ErrNoIdentity, Status: http.StatusPreconditionFailed},
	{Target: portal.ErrNotSubscribed, Status: http.StatusPreconditionFailed},
	{Target: identity.ErrInProgress, Status: http.StatusConflict},
	{Target: subscription.ErrTransition, Status: http.StatusConflict},
	{Target: identity.ErrRegistrationFailed, Status: http.StatusBadGateway},
	{Target: inbox.ErrNotDelivered, Status: http.StatusBadGateway},
}

// Handlers manages the set of portal endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Portal   *portal.Portal
	Keystore *wallet.Keystore
	WS       websocket.Upgrader
	Evts     *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Wallets returns the wallets in the keystore.
func (h Handlers) Wallets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accounts := h.Keystore.Copy()

	wallets := make([]Wallet, 0, len(accounts))
	for _, name := range h.Keystore.Names() {
		wallets = append(wallets, Wallet{Name: name, Address: accounts[name]})
	}

	return web.Respond(ctx, w, wallets, http.StatusOK)
}

// GenerateWallet creates a new wallet in the keystore.
func (h Handlers) GenerateWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nw NewWallet
	if err := web.Decode(r, &nw); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(nw); err != nil {
		return err
	}

	wal, err := h.Keystore.Generate(nw.Name)
	if err != nil {
		return errs.Map(err, rules...)
	}

	return web.Respond(ctx, w, Wallet{Name: wal.Name(), Address: wal.Address()}, http.StatusCreated)
}

// Connect connects the named wallet.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var cn Connect
	if err := web.Decode(r, &cn); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(cn); err != nil {
		return err
	}

	wal, err := h.Keystore.Lookup(cn.Wallet)
	if err != nil {
		return errs.Map(err, rules...)
	}

	if err := h.Portal.Connect(ctx, wal); err != nil {
		return errs.Map(err, rules...)
	}

	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// Disconnect disconnects the connected wallet.
func (h Handlers) Disconnect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Portal.Disconnect(ctx)

	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// Status returns the state of the portal.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// Register registers the identity key for the connected account.
func (h Handlers) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := h.Portal.Register(ctx)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, Identity{Account: id.Account, Key: id.Key}, http.StatusOK)
}

// Subscribe subscribes the connected account to notifications.
func (h Handlers) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Portal.Subscribe(ctx); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// Unsubscribe unsubscribes the connected account from notifications.
func (h Handlers) Unsubscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Portal.Unsubscribe(ctx); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// ToggleBlocks turns block notifications on or off.
func (h Handlers) ToggleBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tg Toggle
	if err := web.Decode(r, &tg); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(tg); err != nil {
		return err
	}

	h.Portal.SetBlockNotifications(*tg.Enabled)

	return web.Respond(ctx, w, h.Portal.Status(), http.StatusOK)
}

// CheckBlocks runs a poll cycle now.
func (h Handlers) CheckBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	outcome, err := h.Portal.CheckBlocks(ctx)
	if err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, Check{Outcome: string(outcome)}, http.StatusOK)
}

// SendTest sends the test notification to the connected account.
func (h Handlers) SendTest(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Portal.SendTest(ctx); err != nil {
		return trusted(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// trusted maps the error to a status. Errors from the notify server are
// reported as a bad gateway with the server's message.
func trusted(err error) error {
	if inbox.IsAPIError(err) {
		return errs.NewTrusted(err, http.StatusBadGateway)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errs.NewTrusted(err, http.StatusGatewayTimeout)
	}

	return errs.Map(err, rules...)
}
