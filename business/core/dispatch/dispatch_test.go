package dispatch_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/ardanlabs/loans/business/core/dispatch"
	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/ardanlabs/loans/foundation/validate"
)

const account = "eip155:1:0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

var app = config.App{
	ProjectID:      "9f1c7e0a",
	AppDomain:      "loans.example.com",
	AppOrigin:      "https://loans.example.com",
	ExplorerURL:    "https://etherscan.io",
	ChainNamespace: "eip155",
	ChainID:        "1",
}

type sender struct {
	err  error
	reqs []inbox.NotifyRequest
}

func (s *sender) Send(ctx context.Context, req inbox.NotifyRequest) error {
	s.reqs = append(s.reqs, req)
	return s.err
}

type notifier struct {
	mu     sync.Mutex
	toasts []events.Toast
}

func (n *notifier) Toast(t events.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, t)
}

func Test_SendBlock(t *testing.T) {
	snd := sender{}
	ntf := notifier{}
	d := dispatch.New(&app, &snd, &ntf, nil)

	if err := d.SendBlock(context.Background(), account, "100", "key"); err != nil {
		t.Fatalf("Should be able to send the block notification: %s", err)
	}

	if len(snd.reqs) != 1 {
		t.Fatalf("Should have submitted one request, got %d.", len(snd.reqs))
	}

	req := snd.reqs[0]
	exp := inbox.Notification{
		Title: "New block",
		Body:  "100",
		Icon:  "https://loans.example.com/assets/eth-glyph.svg",
		URL:   "https://etherscan.io/block/100",
		Type:  "transactional",
	}

	if req.Notification != exp {
		t.Logf("got: %+v", req.Notification)
		t.Logf("exp: %+v", exp)
		t.Fatalf("Should build the block notification.")
	}

	if len(req.Accounts) != 1 || req.Accounts[0] != account || req.IdempotencyKey != "key" {
		t.Logf("got: %+v", req)
		t.Fatalf("Should address the request to the account.")
	}

	if len(ntf.toasts) != 1 || ntf.toasts[0].Title != "New block" || ntf.toasts[0].Status != events.StatusSuccess {
		t.Logf("got: %+v", ntf.toasts)
		t.Fatalf("Should show the new block toast.")
	}
}

func Test_SendFailure(t *testing.T) {
	type table struct {
		name string
		err  error
		exp  string
	}

	tt := []table{
		{name: "message", err: errors.New("dial tcp: connection refused"), exp: "dial tcp: connection refused"},
		{name: "api", err: &inbox.APIError{StatusCode: http.StatusBadGateway, Message: "relay unavailable"}, exp: "relay unavailable"},
		{name: "fallback", err: &inbox.APIError{StatusCode: http.StatusBadGateway}, exp: dispatch.Fallback},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			snd := sender{err: tst.err}
			ntf := notifier{}
			d := dispatch.New(&app, &snd, &ntf, nil)

			err := d.SendBlock(context.Background(), account, "100", "")
			if !errors.Is(err, tst.err) {
				t.Fatalf("Test %s:\tShould return the send error: %v", tst.name, err)
			}

			if len(ntf.toasts) != 1 {
				t.Fatalf("Test %s:\tShould show one toast, got %d.", tst.name, len(ntf.toasts))
			}

			toast := ntf.toasts[0]
			if toast.Status != events.StatusError || toast.Title != "Failed to send new block notification" || toast.Description != tst.exp {
				t.Logf("Test %s:\tgot: %+v", tst.name, toast)
				t.Logf("Test %s:\texp: %s", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould show the failure toast.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_SendValidation(t *testing.T) {
	snd := sender{}
	d := dispatch.New(&app, &snd, &notifier{}, nil)

	p := dispatch.TestPayload(&app)
	p.Type = "spam"

	err := d.Send(context.Background(), account, p, dispatch.Options{})
	if !validate.IsFieldErrors(err) {
		t.Fatalf("Should reject an unknown notification type: %v", err)
	}

	if err := d.SendTest(context.Background(), ""); !errors.Is(err, dispatch.ErrNoAccount) {
		t.Fatalf("Should require a destination account: %v", err)
	}

	if len(snd.reqs) != 0 {
		t.Fatalf("Should not submit invalid notifications.")
	}
}

func Test_SendTest(t *testing.T) {
	snd := sender{}
	d := dispatch.New(&app, &snd, &notifier{}, nil)

	if err := d.SendTest(context.Background(), account); err != nil {
		t.Fatalf("Should be able to send the test notification: %s", err)
	}

	n := snd.reqs[0].Notification
	if n.Title != "GM Hacker" || n.Type != "promotional" {
		t.Logf("got: %+v", n)
		t.Fatalf("Should send the promotional test notification.")
	}
}
