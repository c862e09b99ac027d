// Package subscription tracks the notification subscription state of each
// account and drives subscribe/unsubscribe against the notify server.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/loans/foundation/inbox"
)

// Set of error variables for subscription management.
var (
	ErrNoAccount  = errors.New("no chain account")
	ErrNoIdentity = errors.New("identity key not registered")
	ErrTransition = errors.New("subscription change already in progress")
)

// Remote represents the behavior of the notify server.
type Remote interface {
	Subscribe(ctx context.Context, id inbox.Identity) error
	Unsubscribe(ctx context.Context, id inbox.Identity) error
}

// State represents the subscription state of an account.
type State struct {
	Subscribed    bool `json:"subscribed"`
	Subscribing   bool `json:"subscribing"`
	Unsubscribing bool `json:"unsubscribing"`
}

// EventHandler defines a function that is called when events
// occur in the processing of subscriptions.
type EventHandler func(v string, args ...any)

// =============================================================================

// Manager owns the subscription state. Nothing outside this package
// mutates it.
type Manager struct {
	remote    Remote
	evHandler EventHandler

	mu     sync.RWMutex
	states map[string]*State
}

// New constructs a subscription manager.
func New(remote Remote, evHandler EventHandler) *Manager {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Manager{
		remote:    remote,
		evHandler: ev,
		states:    make(map[string]*State),
	}
}

// Subscribe opts the identity's account into notifications.
func (m *Manager) Subscribe(ctx context.Context, id inbox.Identity) error {
	return m.change(ctx, id, true)
}

// Unsubscribe opts the identity's account out of notifications.
func (m *Manager) Unsubscribe(ctx context.Context, id inbox.Identity) error {
	return m.change(ctx, id, false)
}

// change moves the account through the subscribing or unsubscribing
// transition while the remote call is outstanding.
func (m *Manager) change(ctx context.Context, id inbox.Identity, subscribe bool) error {
	if id.Account == "" {
		return ErrNoAccount
	}
	if id.Key == "" {
		return ErrNoIdentity
	}

	m.mu.Lock()
	st, exists := m.states[id.Account]
	if !exists {
		st = &State{}
		m.states[id.Account] = st
	}

	if st.Subscribing || st.Unsubscribing {
		m.mu.Unlock()
		return ErrTransition
	}

	if st.Subscribed == subscribe {
		m.mu.Unlock()
		return nil
	}

	if subscribe {
		st.Subscribing = true
	} else {
		st.Unsubscribing = true
	}
	m.mu.Unlock()

	m.evHandler("subscription: change: %s: subscribe[%v]: started", id.Account, subscribe)

	var err error
	if subscribe {
		err = m.remote.Subscribe(ctx, id)
	} else {
		err = m.remote.Unsubscribe(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The account was dropped while the call was outstanding.
	if m.states[id.Account] != st {
		if err != nil {
			return err
		}
		return ctx.Err()
	}

	st.Subscribing = false
	st.Unsubscribing = false

	if err != nil {
		m.evHandler("subscription: %s: ERROR: %s", id.Account, err)
		return fmt.Errorf("changing subscription: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	st.Subscribed = subscribe
	m.evHandler("subscription: %s: subscribed[%v]", id.Account, subscribe)

	return nil
}

// State returns a copy of the subscription state for the account.
func (m *Manager) State(account string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.states[account]
	if !exists {
		return State{}
	}
	return *st
}

// IsSubscribed reports whether the account is subscribed.
func (m *Manager) IsSubscribed(account string) bool {
	return m.State(account).Subscribed
}

// Drop forgets the local state for the account.
func (m *Manager) Drop(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, account)
}
