// Package portal is the controller behind the landing page. It reacts to the
// connected wallet by registering an identity, manages the subscription and
// runs the block poller for the subscribed account.
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/loans/business/core/blockwatch"
	"github.com/ardanlabs/loans/business/core/dispatch"
	"github.com/ardanlabs/loans/business/core/identity"
	"github.com/ardanlabs/loans/business/core/session"
	"github.com/ardanlabs/loans/business/core/subscription"
	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
)

// Set of error variables for portal actions.
var (
	ErrNotConnected  = session.ErrNotConnected
	ErrNoIdentity    = errors.New("identity key not registered")
	ErrNotSubscribed = errors.New("account not subscribed")
)

// EventHandler defines a function that is called when events
// occur in the portal.
type EventHandler func(v string, args ...any)

// Status is a snapshot of everything the page shows.
type Status struct {
	Session      session.State       `json:"session"`
	Identity     identity.Record     `json:"identity"`
	Subscription subscription.State  `json:"subscription"`
	Blocks       blockwatch.Snapshot `json:"blocks"`
}

// Config represents the systems the portal composes.
type Config struct {
	App           *config.App
	Session       *session.Session
	Registrar     *identity.Registrar
	Subscriptions *subscription.Manager
	Dispatcher    *dispatch.Dispatcher
	Reader        blockwatch.BlockReader
	Notifier      dispatch.Notifier
	Blocks        BlocksConfig
	EvHandler     EventHandler
}

// BlocksConfig represents the settings for the block poller.
type BlocksConfig struct {
	Interval   time.Duration
	Guarantee  blockwatch.Guarantee
	Overlap    blockwatch.Overlap
	LedgerSize int
	Enabled    bool
}

// Portal coordinates the session, identity, subscription and block poller.
type Portal struct {
	app           *config.App
	session       *session.Session
	registrar     *identity.Registrar
	subscriptions *subscription.Manager
	dispatcher    *dispatch.Dispatcher
	poller        *blockwatch.Poller
	notifier      dispatch.Notifier
	evHandler     EventHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a portal and wires it to session changes.
func New(cfg Config) (*Portal, error) {
	switch {
	case cfg.App == nil:
		return nil, errors.New("app config is required")
	case cfg.Session == nil:
		return nil, errors.New("session is required")
	case cfg.Registrar == nil:
		return nil, errors.New("registrar is required")
	case cfg.Subscriptions == nil:
		return nil, errors.New("subscription manager is required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case cfg.Notifier == nil:
		return nil, errors.New("notifier is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := Portal{
		app:           cfg.App,
		session:       cfg.Session,
		registrar:     cfg.Registrar,
		subscriptions: cfg.Subscriptions,
		dispatcher:    cfg.Dispatcher,
		notifier:      cfg.Notifier,
		evHandler:     ev,
		ctx:           ctx,
		cancel:        cancel,
	}

	poller, err := blockwatch.New(blockwatch.Config{
		Reader:     cfg.Reader,
		Gate:       &p,
		Dispatcher: cfg.Dispatcher,
		Interval:   cfg.Blocks.Interval,
		Guarantee:  cfg.Blocks.Guarantee,
		Overlap:    cfg.Blocks.Overlap,
		LedgerSize: cfg.Blocks.LedgerSize,
		Enabled:    cfg.Blocks.Enabled,
		EvHandler:  blockwatch.EventHandler(ev),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("constructing poller: %w", err)
	}
	p.poller = poller

	cfg.Session.OnChange(p.onChange)

	return &p, nil
}

// Start begins polling for new blocks.
func (p *Portal) Start() {
	p.poller.Start(p.ctx)
}

// Shutdown cancels every outstanding operation and waits for them to end.
func (p *Portal) Shutdown() {
	p.evHandler("portal: shutdown: started")
	defer p.evHandler("portal: shutdown: completed")

	p.cancel()
	p.poller.Shutdown()
	p.wg.Wait()
}

// =============================================================================

// Connect makes the signer the connected wallet.
func (p *Portal) Connect(ctx context.Context, signer session.Signer) error {
	return p.session.Connect(ctx, signer)
}

// Disconnect clears the connected wallet.
func (p *Portal) Disconnect(ctx context.Context) {
	p.session.Disconnect(ctx)
}

// onChange reacts to a new or cleared wallet.
func (p *Portal) onChange(ctx context.Context, ch session.Change) {
	if !ch.AccountChanged() {
		return
	}

	if prev := ch.Previous.ChainAccountID; prev != "" {
		p.evHandler("portal: session: %s: cleared", prev)
		p.registrar.Forget(prev)
		p.subscriptions.Drop(prev)
		p.poller.Reset()
	}

	if account := ch.Current.ChainAccountID; account != "" {
		p.evHandler("portal: session: %s: connected", account)
		p.registerAsync(account)
	}
}

// registerAsync registers the identity for the account in the background.
func (p *Portal) registerAsync(account string) {
	if p.ctx.Err() != nil {
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		if _, err := p.registrar.Ensure(p.ctx, account, p.session.SignMessage); err != nil {
			p.reportRegistration(account, err)
		}
	}()
}

// reportRegistration surfaces a registration failure to the user.
func (p *Portal) reportRegistration(account string, err error) {
	switch {
	case errors.Is(err, identity.ErrRegistrationFailed):
		p.evHandler("portal: register: %s: ERROR: %s", account, err)
		p.notifier.Toast(events.Toast{
			Status:      events.StatusError,
			Title:       "Failed to register identity",
			Description: dispatch.Describe(err),
		})

	default:
		p.evHandler("portal: register: %s: abandoned: %s", account, err)
	}
}

// Register registers the identity for the connected account, retrying a
// registration that previously failed.
func (p *Portal) Register(ctx context.Context) (inbox.Identity, error) {
	account := p.session.ChainAccountID()
	if account == "" {
		return inbox.Identity{}, ErrNotConnected
	}

	ctx, cancel := p.join(ctx)
	defer cancel()

	id, err := p.registrar.Ensure(ctx, account, p.session.SignMessage)
	if err != nil {
		p.reportRegistration(account, err)
		return inbox.Identity{}, err
	}

	return id, nil
}

// Subscribe opts the connected account into notifications.
func (p *Portal) Subscribe(ctx context.Context) error {
	id, err := p.identity()
	if err != nil {
		return err
	}

	ctx, cancel := p.join(ctx)
	defer cancel()

	return p.subscriptions.Subscribe(ctx, id)
}

// Unsubscribe opts the connected account out of notifications.
func (p *Portal) Unsubscribe(ctx context.Context) error {
	id, err := p.identity()
	if err != nil {
		return err
	}

	ctx, cancel := p.join(ctx)
	defer cancel()

	return p.subscriptions.Unsubscribe(ctx, id)
}

// SetBlockNotifications turns the block notifications on or off.
func (p *Portal) SetBlockNotifications(enabled bool) {
	p.poller.SetEnabled(enabled)
}

// CheckBlocks runs a poll cycle immediately.
func (p *Portal) CheckBlocks(ctx context.Context) (blockwatch.Outcome, error) {
	ctx, cancel := p.join(ctx)
	defer cancel()

	return p.poller.Check(ctx)
}

// SendTest sends the test notification to the connected account.
func (p *Portal) SendTest(ctx context.Context) error {
	account, subscribed := p.Target()
	if account == "" {
		return ErrNotConnected
	}
	if !subscribed {
		return ErrNotSubscribed
	}

	ctx, cancel := p.join(ctx)
	defer cancel()

	return p.dispatcher.SendTest(ctx, account)
}

// Target implements the blockwatch.Gate interface.
func (p *Portal) Target() (string, bool) {
	account := p.session.ChainAccountID()
	if account == "" {
		return "", false
	}

	return account, p.subscriptions.IsSubscribed(account)
}

// Status returns a snapshot of the portal.
func (p *Portal) Status() Status {
	st := p.session.State()

	return Status{
		Session:      st,
		Identity:     p.registrar.Record(st.ChainAccountID),
		Subscription: p.subscriptions.State(st.ChainAccountID),
		Blocks:       p.poller.Snapshot(),
	}
}

// =============================================================================

// identity returns the registered identity of the connected account.
func (p *Portal) identity() (inbox.Identity, error) {
	account := p.session.ChainAccountID()
	if account == "" {
		return inbox.Identity{}, ErrNotConnected
	}

	id, ok := p.registrar.Identity(account)
	if !ok {
		return inbox.Identity{}, ErrNoIdentity
	}

	return id, nil
}

// join returns a context cancelled when either the caller's context or the
// portal's context is done.
func (p *Portal) join(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}
