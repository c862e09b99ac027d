// Package session tracks the wallet connected to the portal and the chain
// account id derived from it.
package session

import (
	"context"
	"errors"
	"sync"
)

// Default chain the portal derives account ids for.
const (
	Namespace = "eip155"
	MainnetID = "1"
)

// Set of error variables for the session.
var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrNoAddress    = errors.New("wallet has no address")
)

// Signer represents the behavior of a connected wallet.
type Signer interface {
	Address() string
	SignMessage(ctx context.Context, message string) (string, error)
}

// State is a snapshot of the session.
type State struct {
	WalletAddress  string `json:"wallet_address"`
	ChainAccountID string `json:"chain_account_id"`
}

// Change describes a transition of the session.
type Change struct {
	Previous State
	Current  State
}

// AccountChanged reports whether the chain account id changed.
func (c Change) AccountChanged() bool {
	return c.Previous.ChainAccountID != c.Current.ChainAccountID
}

// Listener is called after every change of the session.
type Listener func(ctx context.Context, change Change)

// ChainAccountID builds the chain namespaced identifier for the address.
// An empty address produces an empty id.
func ChainAccountID(namespace string, chainID string, address string) string {
	if address == "" {
		return ""
	}
	return namespace + ":" + chainID + ":" + address
}

// =============================================================================

// Session holds the connected wallet.
type Session struct {
	namespace string
	chainID   string

	// notifyMu is held from a state change until its listeners return so
	// changes are delivered in the order they were made.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	signer    Signer
	state     State
	listeners []Listener
}

// New constructs a session for the specified chain.
func New(namespace string, chainID string) *Session {
	return &Session{
		namespace: namespace,
		chainID:   chainID,
	}
}

// OnChange registers a listener. Listeners are called in the order they
// were registered, outside of the session lock. A listener must not call
// Connect or Disconnect.
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

// Connect makes the signer the connected wallet. Connecting the wallet that
// is already connected does not produce a change.
func (s *Session) Connect(ctx context.Context, signer Signer) error {
	if signer == nil || signer.Address() == "" {
		return ErrNoAddress
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := State{
		WalletAddress:  signer.Address(),
		ChainAccountID: ChainAccountID(s.namespace, s.chainID, signer.Address()),
	}
	s.signer = signer
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	if prev == next {
		return nil
	}

	s.notify(ctx, listeners, Change{Previous: prev, Current: next})
	return nil
}

// Disconnect clears the connected wallet.
func (s *Session) Disconnect(ctx context.Context) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	s.signer = nil
	s.state = State{}
	listeners := s.listeners
	s.mu.Unlock()

	if prev == (State{}) {
		return
	}

	s.notify(ctx, listeners, Change{Previous: prev})
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// ChainAccountID returns the chain account id of the connected wallet.
func (s *Session) ChainAccountID() string {
	return s.State().ChainAccountID
}

// SignMessage asks the connected wallet to sign the message.
func (s *Session) SignMessage(ctx context.Context, message string) (string, error) {
	s.mu.RLock()
	signer := s.signer
	s.mu.RUnlock()

	if signer == nil {
		return "", ErrNotConnected
	}

	return signer.SignMessage(ctx, message)
}

func (s *Session) notify(ctx context.Context, listeners []Listener, change Change) {
	for _, l := range listeners {
		l(ctx, change)
	}
}
