// Package dispatch formats notifications, submits them to the notify server
// and reports the outcome to the user as toasts.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/ardanlabs/loans/foundation/validate"
)

// Fallback is the toast description used when an error carries no message.
const Fallback = "Something went wrong"

// ErrNoAccount is returned when there is no destination account.
var ErrNoAccount = errors.New("no destination account")

// Sender represents the behavior of the notify server.
type Sender interface {
	Send(ctx context.Context, req inbox.NotifyRequest) error
}

// Notifier represents the behavior of whatever shows toasts to the user.
type Notifier interface {
	Toast(t events.Toast)
}

// EventHandler defines a function that is called when events
// occur in the processing of notifications.
type EventHandler func(v string, args ...any)

// Options adjust a single send.
type Options struct {
	IdempotencyKey string
	SuccessTitle   string
	FailureTitle   string
}

// =============================================================================

// Dispatcher submits notifications.
type Dispatcher struct {
	cfg       *config.App
	sender    Sender
	notifier  Notifier
	evHandler EventHandler
}

// New constructs a dispatcher.
func New(cfg *config.App, sender Sender, notifier Notifier, evHandler EventHandler) *Dispatcher {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Dispatcher{
		cfg:       cfg,
		sender:    sender,
		notifier:  notifier,
		evHandler: ev,
	}
}

// Send validates the payload and submits it for the account. The outcome is
// shown as a toast either way.
func (d *Dispatcher) Send(ctx context.Context, account string, p Payload, opts Options) error {
	if account == "" {
		return ErrNoAccount
	}

	if err := validate.Check(p); err != nil {
		return fmt.Errorf("validating payload: %w", err)
	}

	if opts.SuccessTitle == "" {
		opts.SuccessTitle = "Notification sent"
	}
	if opts.FailureTitle == "" {
		opts.FailureTitle = "Failed to send notification"
	}

	req := inbox.NotifyRequest{
		Accounts: []string{account},
		Notification: inbox.Notification{
			Title: p.Title,
			Body:  p.Body,
			Icon:  p.Icon,
			URL:   p.URL,
			Type:  string(p.Type),
		},
		IdempotencyKey: opts.IdempotencyKey,
	}

	if err := d.sender.Send(ctx, req); err != nil {
		d.evHandler("dispatch: send: %s: %q: ERROR: %s", account, p.Title, err)
		d.notifier.Toast(events.Toast{
			Status:      events.StatusError,
			Title:       opts.FailureTitle,
			Description: Describe(err),
		})
		return fmt.Errorf("sending notification: %w", err)
	}

	d.evHandler("dispatch: send: %s: %q: sent", account, p.Title)
	d.notifier.Toast(events.Toast{
		Status: events.StatusSuccess,
		Title:  opts.SuccessTitle,
	})

	return nil
}

// SendBlock announces the block number to the account.
func (d *Dispatcher) SendBlock(ctx context.Context, account string, number string, idempotencyKey string) error {
	opts := Options{
		IdempotencyKey: idempotencyKey,
		SuccessTitle:   "New block",
		FailureTitle:   "Failed to send new block notification",
	}

	return d.Send(ctx, account, BlockPayload(d.cfg, number), opts)
}

// SendTest sends the test notification to the account.
func (d *Dispatcher) SendTest(ctx context.Context, account string) error {
	return d.Send(ctx, account, TestPayload(d.cfg), Options{})
}

// Describe returns the message shown to the user for the error.
func Describe(err error) string {
	var ae *inbox.APIError
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		return Fallback
	}

	if err == nil || err.Error() == "" {
		return Fallback
	}
	return err.Error()
}
