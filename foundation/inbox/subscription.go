package inbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Set of actions carried in the subscription auth token.
const (
	actSubscribe   = "notify_subscription"
	actUnsubscribe = "notify_delete"
)

type subscriptionRequest struct {
	SubscriptionAuth string `json:"subscriptionAuth"`
}

// Subscribe opts the identity's account into notifications from this app.
func (c *Client) Subscribe(ctx context.Context, id Identity) error {
	token, err := c.subscriptionAuth(id, actSubscribe)
	if err != nil {
		return err
	}

	req := subscriptionRequest{SubscriptionAuth: token}
	if err := c.doRequest(ctx, c.notifyURL, http.MethodPost, c.projectPath("subscribe"), nil, req, nil); err != nil {
		return fmt.Errorf("subscribing %s: %w", id.Account, err)
	}

	return nil
}

// Unsubscribe removes the identity's account from this app's subscribers.
func (c *Client) Unsubscribe(ctx context.Context, id Identity) error {
	token, err := c.subscriptionAuth(id, actUnsubscribe)
	if err != nil {
		return err
	}

	req := subscriptionRequest{SubscriptionAuth: token}
	if err := c.doRequest(ctx, c.notifyURL, http.MethodPost, c.projectPath("unsubscribe"), nil, req, nil); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", id.Account, err)
	}

	return nil
}

// subscriptionAuth produces the EdDSA token, signed by the identity key, that
// authorizes the action for the account.
func (c *Client) subscriptionAuth(id Identity, act string) (string, error) {
	if len(id.PrivateKey) == 0 {
		return "", errors.New("identity has no private key")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(c.cfg.JWTTTL).Unix(),
		"iss": id.DIDKey(),
		"sub": "did:pkh:" + id.Account,
		"aud": c.appDID(),
		"ksu": c.keysURL.String(),
		"act": act,
		"app": c.appDID(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)

	signed, err := token.SignedString(id.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("signing subscription auth: %w", err)
	}

	return signed, nil
}
