// Package identity registers the identity key that authorizes notification
// subscription actions for a chain account.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/cenkalti/backoff/v5"
)

// Set of error variables for identity registration.
var (
	ErrNoAccount          = errors.New("no chain account")
	ErrInProgress         = errors.New("identity registration in progress")
	ErrRegistrationFailed = errors.New("identity registration failed")
	ErrForgotten          = errors.New("identity forgotten during registration")
)

// Status represents where an account is in the registration process.
type Status string

// Set of registration statuses.
const (
	StatusNone        Status = "none"
	StatusRegistering Status = "registering"
	StatusRegistered  Status = "registered"
	StatusFailed      Status = "failed"
)

// EventHandler defines a function that is called when events
// occur in the processing of registrations.
type EventHandler func(v string, args ...any)

// Service represents the behavior of the remote identity service.
type Service interface {
	RegisterIdentity(ctx context.Context, account string, sign inbox.SignFunc) (inbox.Identity, error)
}

// Record is a snapshot of the registration state for an account.
type Record struct {
	Status   Status `json:"status"`
	Key      string `json:"key,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// record is the mutable registration state kept per account.
type record struct {
	status   Status
	identity inbox.Identity
	attempts int
	err      error
}

// =============================================================================

// Backoff represents the delay between registration attempts. The delay
// starts at Base and doubles after every failed attempt up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// policy returns a fresh backoff policy for a round of attempts.
func (b Backoff) policy() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval: b.Base,
		Multiplier:      2,
		MaxInterval:     b.Max,
	}
}

// Config represents the settings for a registrar.
type Config struct {
	Service     Service
	MaxAttempts int
	Backoff     Backoff
	EvHandler   EventHandler
}

// Registrar performs identity registration with a bounded number of
// attempts per call.
type Registrar struct {
	service     Service
	maxAttempts int
	backoff     Backoff
	evHandler   EventHandler

	mu      sync.Mutex
	records map[string]*record
}

// New constructs a registrar.
func New(cfg Config) (*Registrar, error) {
	if cfg.Service == nil {
		return nil, errors.New("identity service is required")
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	if cfg.Backoff.Max < cfg.Backoff.Base {
		cfg.Backoff.Max = cfg.Backoff.Base
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	r := Registrar{
		service:     cfg.Service,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		evHandler:   ev,
		records:     make(map[string]*record),
	}

	return &r, nil
}

// Ensure returns the identity for the account, registering one when the
// account has none. Registration is attempted up to MaxAttempts times with
// backoff between attempts. When every attempt fails the account is left in
// the failed state and the error is returned; calling Ensure again starts a
// new round of attempts. No state is recorded once the context is cancelled.
func (r *Registrar) Ensure(ctx context.Context, account string, sign inbox.SignFunc) (inbox.Identity, error) {
	if account == "" {
		return inbox.Identity{}, ErrNoAccount
	}

	r.mu.Lock()
	if rec, exists := r.records[account]; exists {
		switch rec.status {
		case StatusRegistered:
			r.mu.Unlock()
			return rec.identity, nil

		case StatusRegistering:
			r.mu.Unlock()
			return inbox.Identity{}, ErrInProgress
		}
	}

	rec := &record{status: StatusRegistering}
	r.records[account] = rec
	r.mu.Unlock()

	r.evHandler("identity: ensure: %s: started", account)

	attempt := func() (inbox.Identity, error) {
		r.mu.Lock()
		if r.records[account] != rec {
			r.mu.Unlock()
			return inbox.Identity{}, backoff.Permanent(ErrForgotten)
		}
		rec.attempts++
		n := rec.attempts
		r.mu.Unlock()

		id, err := r.service.RegisterIdentity(ctx, account, sign)
		if err != nil {
			r.evHandler("identity: ensure: %s: attempt[%d/%d]: ERROR: %s", account, n, r.maxAttempts, err)
			return inbox.Identity{}, err
		}

		return id, nil
	}

	id, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.backoff.policy()),
		backoff.WithMaxTries(uint(r.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return inbox.Identity{}, r.fail(ctx, account, rec, err)
	}

	return r.succeed(ctx, account, rec, id)
}

// succeed records the identity unless the registration was abandoned.
func (r *Registrar) succeed(ctx context.Context, account string, rec *record, id inbox.Identity) (inbox.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[account] != rec {
		return inbox.Identity{}, ErrForgotten
	}

	if err := ctx.Err(); err != nil {
		delete(r.records, account)
		return inbox.Identity{}, err
	}

	rec.status = StatusRegistered
	rec.identity = id
	rec.err = nil

	r.evHandler("identity: ensure: %s: registered key[%s]", account, id.Key)
	return id, nil
}

// fail moves the account into the terminal failed state.
func (r *Registrar) fail(ctx context.Context, account string, rec *record, lastErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[account] != rec {
		return ErrForgotten
	}

	if err := ctx.Err(); err != nil {
		delete(r.records, account)
		return err
	}

	rec.status = StatusFailed
	rec.err = lastErr

	r.evHandler("identity: ensure: %s: failed after %d attempts", account, rec.attempts)
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrRegistrationFailed, account, rec.attempts, lastErr)
}

// Identity returns the registered identity for the account.
func (r *Registrar) Identity(account string) (inbox.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[account]
	if !exists || rec.status != StatusRegistered {
		return inbox.Identity{}, false
	}

	return rec.identity, true
}

// Record returns a snapshot of the registration state for the account.
func (r *Registrar) Record(account string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[account]
	if !exists {
		return Record{Status: StatusNone}
	}

	out := Record{
		Status:   rec.status,
		Key:      rec.identity.Key,
		Attempts: rec.attempts,
	}
	if rec.err != nil {
		out.Error = rec.err.Error()
	}

	return out
}

// Forget drops any identity or registration state for the account. An
// outstanding registration for the account will not record its result.
func (r *Registrar) Forget(account string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, account)
}
