package inbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotDelivered is returned when the notify server accepted the request
// but did not deliver it to any account.
var ErrNotDelivered = errors.New("notification not delivered")

// Notification is the content delivered to the subscribed accounts.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// NotifyRequest is the body accepted by the notify endpoint.
type NotifyRequest struct {
	Accounts       []string     `json:"accounts"`
	Notification   Notification `json:"notification"`
	IdempotencyKey string       `json:"-"`
}

// FailedAccount reports an account the notification could not reach.
type FailedAccount struct {
	Account string `json:"account"`
	Reason  string `json:"reason"`
}

// NotifyResponse reports the accounts the notification reached.
type NotifyResponse struct {
	Sent     []string        `json:"sent"`
	Failed   []FailedAccount `json:"failed"`
	NotFound []string        `json:"not_found"`
}

// Send delivers the notification to the accounts in the request.
func (c *Client) Send(ctx context.Context, req NotifyRequest) error {
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.NotifySecret,
	}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}

	var resp NotifyResponse
	if err := c.doRequest(ctx, c.notifyURL, http.MethodPost, c.projectPath("notify"), headers, req, &resp); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	if len(resp.Sent) == 0 && (len(resp.Failed) > 0 || len(resp.NotFound) > 0) {
		reasons := make([]string, 0, len(resp.Failed)+len(resp.NotFound))
		for _, f := range resp.Failed {
			reasons = append(reasons, f.Account+": "+f.Reason)
		}
		for _, a := range resp.NotFound {
			reasons = append(reasons, a+": not subscribed")
		}
		return fmt.Errorf("%w: %s", ErrNotDelivered, strings.Join(reasons, ", "))
	}

	return nil
}
