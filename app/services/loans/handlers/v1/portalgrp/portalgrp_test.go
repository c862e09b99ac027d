package portalgrp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	v1 "github.com/ardanlabs/loans/app/services/loans/handlers/v1"
	"github.com/ardanlabs/loans/app/services/loans/handlers/v1/portalgrp"
	"github.com/ardanlabs/loans/business/core/dispatch"
	"github.com/ardanlabs/loans/business/core/identity"
	"github.com/ardanlabs/loans/business/core/portal"
	"github.com/ardanlabs/loans/business/core/session"
	"github.com/ardanlabs/loans/business/core/subscription"
	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/business/web/mid"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/ardanlabs/loans/foundation/logger"
	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/ardanlabs/loans/foundation/web"
)

type keys struct{}

func (keys) RegisterIdentity(ctx context.Context, account string, sign inbox.SignFunc) (inbox.Identity, error) {
	if _, err := sign(ctx, "challenge"); err != nil {
		return inbox.Identity{}, err
	}
	return inbox.Identity{Account: account, Key: "ed01"}, nil
}

type remote struct{}

func (remote) Subscribe(ctx context.Context, id inbox.Identity) error   { return nil }
func (remote) Unsubscribe(ctx context.Context, id inbox.Identity) error { return nil }

type sender struct {
	mu   sync.Mutex
	sent int
}

func (s *sender) Send(ctx context.Context, req inbox.NotifyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

type chain struct{}

func (chain) BlockNumber(ctx context.Context) (uint64, error) {
	return 100, nil
}

func newApp(t *testing.T) (http.Handler, *portal.Portal) {
	log := logger.NewNop()

	ks, err := wallet.NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct a keystore: %s", err)
	}
	if _, err := ks.Generate("alice"); err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	app := config.App{
		ProjectID:      "project",
		AppDomain:      "loans.example.com",
		AppOrigin:      "https://loans.example.com",
		ExplorerURL:    "https://etherscan.io",
		ChainNamespace: session.Namespace,
		ChainID:        session.MainnetID,
	}

	evts := events.New()

	reg, err := identity.New(identity.Config{Service: keys{}, MaxAttempts: 1})
	if err != nil {
		t.Fatalf("Should be able to construct a registrar: %s", err)
	}

	p, err := portal.New(portal.Config{
		App:           &app,
		Session:       session.New(app.ChainNamespace, app.ChainID),
		Registrar:     reg,
		Subscriptions: subscription.New(remote{}, nil),
		Dispatcher:    dispatch.New(&app, &sender{}, evts, nil),
		Reader:        chain{},
		Notifier:      evts,
		Blocks:        portal.BlocksConfig{Interval: time.Hour, Enabled: true},
	})
	if err != nil {
		t.Fatalf("Should be able to construct a portal: %s", err)
	}
	t.Cleanup(p.Shutdown)

	wa := web.NewApp(make(chan os.Signal, 1), mid.Errors(log), mid.Panics())
	v1.Routes(wa, v1.Config{
		Log:      log,
		Portal:   p,
		Keystore: ks,
		Evts:     evts,
	})

	return wa, p
}

func call(t *testing.T, h http.Handler, method string, path string, body string, status int, resp any) {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != status {
		t.Logf("got: %d %s", w.Code, w.Body.String())
		t.Logf("exp: %d", status)
		t.Fatalf("Should receive the expected status for %s %s.", method, path)
	}

	if resp != nil {
		if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
			t.Fatalf("Should be able to decode the response: %s", err)
		}
	}
}

func Test_Flow(t *testing.T) {
	h, p := newApp(t)

	var wallets []portalgrp.Wallet
	call(t, h, http.MethodGet, "/v1/wallets", "", http.StatusOK, &wallets)
	if len(wallets) != 1 || wallets[0].Name != "alice" {
		t.Logf("got: %+v", wallets)
		t.Fatalf("Should list the keystore wallets.")
	}

	call(t, h, http.MethodPost, "/v1/identity/register", "", http.StatusPreconditionFailed, nil)
	call(t, h, http.MethodPost, "/v1/session/connect", `{"wallet":"bob"}`, http.StatusNotFound, nil)
	call(t, h, http.MethodPost, "/v1/session/connect", `{}`, http.StatusBadRequest, nil)

	var st portal.Status
	call(t, h, http.MethodPost, "/v1/session/connect", `{"wallet":"alice"}`, http.StatusOK, &st)

	exp := "eip155:1:" + wallets[0].Address
	if st.Session.ChainAccountID != exp {
		t.Logf("got: %s", st.Session.ChainAccountID)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should connect the wallet.")
	}

	deadline := time.Now().Add(5 * time.Second)
	for p.Status().Identity.Status != identity.StatusRegistered {
		if time.Now().After(deadline) {
			t.Fatalf("Should register the identity after connecting.")
		}
		time.Sleep(time.Millisecond)
	}

	call(t, h, http.MethodPost, "/v1/notify/test", "", http.StatusPreconditionFailed, nil)

	call(t, h, http.MethodPost, "/v1/subscription/subscribe", "", http.StatusOK, &st)
	if !st.Subscription.Subscribed {
		t.Fatalf("Should subscribe the account.")
	}

	var chk portalgrp.Check
	call(t, h, http.MethodPost, "/v1/blocks/check", "", http.StatusOK, &chk)
	if chk.Outcome != "dispatched" {
		t.Logf("got: %s", chk.Outcome)
		t.Logf("exp: %s", "dispatched")
		t.Fatalf("Should dispatch the new block.")
	}

	call(t, h, http.MethodPost, "/v1/notify/test", "", http.StatusNoContent, nil)

	call(t, h, http.MethodPost, "/v1/blocks/toggle", `{}`, http.StatusBadRequest, nil)
	call(t, h, http.MethodPost, "/v1/blocks/toggle", `{"enabled":false}`, http.StatusOK, &st)
	if st.Blocks.Enabled {
		t.Fatalf("Should disable block notifications.")
	}
	if !st.Subscription.Subscribed {
		t.Fatalf("Should leave the subscription alone when toggling.")
	}

	call(t, h, http.MethodPost, "/v1/session/disconnect", "", http.StatusOK, &st)
	if st.Session.ChainAccountID != "" {
		t.Fatalf("Should disconnect the wallet.")
	}
}

func Test_GenerateWallet(t *testing.T) {
	h, _ := newApp(t)

	var wal portalgrp.Wallet
	call(t, h, http.MethodPost, "/v1/wallets", `{"name":"bob"}`, http.StatusCreated, &wal)
	if wal.Name != "bob" || wal.Address == "" {
		t.Logf("got: %+v", wal)
		t.Fatalf("Should generate the wallet.")
	}

	call(t, h, http.MethodPost, "/v1/wallets", `{"name":"bob"}`, http.StatusConflict, nil)
	call(t, h, http.MethodPost, "/v1/wallets", `{"name":"../bob"}`, http.StatusBadRequest, nil)
}
