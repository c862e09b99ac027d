package portal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/loans/business/core/blockwatch"
	"github.com/ardanlabs/loans/business/core/dispatch"
	"github.com/ardanlabs/loans/business/core/identity"
	"github.com/ardanlabs/loans/business/core/portal"
	"github.com/ardanlabs/loans/business/core/session"
	"github.com/ardanlabs/loans/business/core/subscription"
	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const address = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

// signer is a wallet that signs everything.
type signer struct {
	address string
}

func (s signer) Address() string { return s.address }

func (s signer) SignMessage(ctx context.Context, message string) (string, error) {
	return "0xsig", nil
}

// keys registers an identity for every account unless blocked.
type keys struct {
	mu    sync.Mutex
	calls int
	block bool
}

func (k *keys) RegisterIdentity(ctx context.Context, account string, sign inbox.SignFunc) (inbox.Identity, error) {
	k.mu.Lock()
	k.calls++
	block := k.block
	k.mu.Unlock()

	if block {
		<-ctx.Done()
		return inbox.Identity{}, ctx.Err()
	}

	if _, err := sign(ctx, "challenge"); err != nil {
		return inbox.Identity{}, err
	}

	return inbox.Identity{Account: account, Key: "ed01"}, nil
}

func (k *keys) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

// remote accepts every subscription change.
type remote struct{}

func (remote) Subscribe(ctx context.Context, id inbox.Identity) error   { return nil }
func (remote) Unsubscribe(ctx context.Context, id inbox.Identity) error { return nil }

// sender records every notification.
type sender struct {
	mu   sync.Mutex
	sent []inbox.Notification
}

func (s *sender) Send(ctx context.Context, req inbox.NotifyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, req.Notification)
	return nil
}

func (s *sender) notifications() []inbox.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inbox.Notification(nil), s.sent...)
}

// chain always reports the same block.
type chain struct {
	number uint64
}

func (c chain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.number, nil
}

// toasts records every toast.
type toasts struct {
	mu  sync.Mutex
	all []events.Toast
}

func (t *toasts) Toast(toast events.Toast) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.all = append(t.all, toast)
}

func (t *toasts) titles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var titles []string
	for _, toast := range t.all {
		titles = append(titles, toast.Title)
	}
	return titles
}

type fixture struct {
	portal *portal.Portal
	keys   *keys
	sender *sender
	toasts *toasts
}

func newPortal(t *testing.T, k *keys) fixture {
	app := config.App{
		ProjectID:      "project",
		AppDomain:      "loans.example.com",
		AppOrigin:      "https://loans.example.com",
		ExplorerURL:    "https://etherscan.io",
		ChainNamespace: session.Namespace,
		ChainID:        session.MainnetID,
	}

	snd := sender{}
	tst := toasts{}

	reg, err := identity.New(identity.Config{
		Service:     k,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a registrar: %s", err)
	}

	p, err := portal.New(portal.Config{
		App:           &app,
		Session:       session.New(app.ChainNamespace, app.ChainID),
		Registrar:     reg,
		Subscriptions: subscription.New(remote{}, nil),
		Dispatcher:    dispatch.New(&app, &snd, &tst, nil),
		Reader:        chain{number: 100},
		Notifier:      &tst,
		Blocks: portal.BlocksConfig{
			Interval: time.Hour,
			Enabled:  true,
		},
	})
	if err != nil {
		t.Fatalf("Should be able to construct a portal: %s", err)
	}
	t.Cleanup(p.Shutdown)

	return fixture{
		portal: p,
		keys:   k,
		sender: &snd,
		toasts: &tst,
	}
}

// connect connects the wallet and waits for the identity registration.
func connect(t *testing.T, f fixture) {
	if err := f.portal.Connect(context.Background(), signer{address: address}); err != nil {
		t.Fatalf("Should be able to connect the wallet: %s", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.portal.Status().Identity.Status != identity.StatusRegistered {
		if time.Now().After(deadline) {
			t.Fatalf("Should register the identity after connecting.")
		}
		time.Sleep(time.Millisecond)
	}
}

// =============================================================================

func Test_ConnectRegisters(t *testing.T) {
	f := newPortal(t, &keys{})
	connect(t, f)

	st := f.portal.Status()

	exp := "eip155:1:" + address
	if st.Session.ChainAccountID != exp {
		t.Logf("got: %s", st.Session.ChainAccountID)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should derive the chain account id.")
	}

	if st.Identity.Key != "ed01" {
		t.Logf("got: %s", st.Identity.Key)
		t.Logf("exp: %s", "ed01")
		t.Fatalf("Should hold the registered key.")
	}

	if _, err := f.portal.Register(context.Background()); err != nil {
		t.Fatalf("Should return the held key: %s", err)
	}

	if f.keys.count() != 1 {
		t.Logf("got: %d", f.keys.count())
		t.Logf("exp: %d", 1)
		t.Fatalf("Should not register again while the key is held.")
	}
}

func Test_NotConnected(t *testing.T) {
	f := newPortal(t, &keys{})
	ctx := context.Background()

	if err := f.portal.Subscribe(ctx); !errors.Is(err, portal.ErrNotConnected) {
		t.Fatalf("Should not subscribe without a wallet: %v", err)
	}

	if err := f.portal.SendTest(ctx); !errors.Is(err, portal.ErrNotConnected) {
		t.Fatalf("Should not send a test without a wallet: %v", err)
	}

	if _, err := f.portal.Register(ctx); !errors.Is(err, portal.ErrNotConnected) {
		t.Fatalf("Should not register without a wallet: %v", err)
	}
}

func Test_BlocksRequireSubscription(t *testing.T) {
	f := newPortal(t, &keys{})
	connect(t, f)
	ctx := context.Background()

	outcome, err := f.portal.CheckBlocks(ctx)
	if err != nil {
		t.Fatalf("Should be able to check blocks: %s", err)
	}
	if outcome != blockwatch.OutcomeGuarded {
		t.Logf("got: %s", outcome)
		t.Logf("exp: %s", blockwatch.OutcomeGuarded)
		t.Fatalf("Should not notify an unsubscribed account.")
	}

	if err := f.portal.SendTest(ctx); !errors.Is(err, portal.ErrNotSubscribed) {
		t.Fatalf("Should not send a test to an unsubscribed account: %v", err)
	}

	if err := f.portal.Subscribe(ctx); err != nil {
		t.Fatalf("Should be able to subscribe: %s", err)
	}

	outcome, err = f.portal.CheckBlocks(ctx)
	if err != nil {
		t.Fatalf("Should be able to check blocks: %s", err)
	}
	if outcome != blockwatch.OutcomeDispatched {
		t.Logf("got: %s", outcome)
		t.Logf("exp: %s", blockwatch.OutcomeDispatched)
		t.Fatalf("Should notify a subscribed account.")
	}

	sent := f.sender.notifications()
	if len(sent) != 1 || sent[0].Body != "100" {
		t.Logf("got: %+v", sent)
		t.Fatalf("Should send the block number.")
	}

	titles := f.toasts.titles()
	if len(titles) != 1 || titles[0] != "New block" {
		t.Logf("got: %v", titles)
		t.Logf("exp: %v", []string{"New block"})
		t.Fatalf("Should toast the new block.")
	}
	t.Logf("\t%s\tShould notify only subscribed accounts.", success)
}

func Test_SendTest(t *testing.T) {
	f := newPortal(t, &keys{})
	connect(t, f)
	ctx := context.Background()

	if err := f.portal.Subscribe(ctx); err != nil {
		t.Fatalf("Should be able to subscribe: %s", err)
	}

	if err := f.portal.SendTest(ctx); err != nil {
		t.Fatalf("Should be able to send a test notification: %s", err)
	}

	sent := f.sender.notifications()
	if len(sent) != 1 || sent[0].Title != "GM Hacker" {
		t.Logf("got: %+v", sent)
		t.Fatalf("Should send the test notification.")
	}
}

func Test_DisconnectClears(t *testing.T) {
	f := newPortal(t, &keys{})
	connect(t, f)
	ctx := context.Background()

	if err := f.portal.Subscribe(ctx); err != nil {
		t.Fatalf("Should be able to subscribe: %s", err)
	}
	if _, err := f.portal.CheckBlocks(ctx); err != nil {
		t.Fatalf("Should be able to check blocks: %s", err)
	}

	f.portal.Disconnect(ctx)

	st := f.portal.Status()
	switch {
	case st.Session.ChainAccountID != "":
		t.Fatalf("Should clear the chain account id: %s", st.Session.ChainAccountID)
	case st.Blocks.LastBlock != "":
		t.Fatalf("Should forget the last block: %s", st.Blocks.LastBlock)
	}

	connect(t, f)

	st = f.portal.Status()
	if st.Subscription.Subscribed {
		t.Fatalf("Should forget the subscription on disconnect.")
	}

	if f.keys.count() != 2 {
		t.Logf("got: %d", f.keys.count())
		t.Logf("exp: %d", 2)
		t.Fatalf("Should register a new key after reconnecting.")
	}
	t.Logf("\t%s\tShould clear session state on disconnect.", success)
}

func Test_ShutdownCancelsRegistration(t *testing.T) {
	k := keys{block: true}
	f := newPortal(t, &k)

	if err := f.portal.Connect(context.Background(), signer{address: address}); err != nil {
		t.Fatalf("Should be able to connect the wallet: %s", err)
	}

	done := make(chan struct{})
	go func() {
		f.portal.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("\t%s\tShould cancel the registration on shutdown.", failed)
	}

	if st := f.portal.Status().Identity.Status; st == identity.StatusRegistered {
		t.Fatalf("Should not record an identity after shutdown: %s", st)
	}
}
