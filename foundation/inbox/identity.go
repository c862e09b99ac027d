package inbox

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/google/uuid"
)

// SignFunc produces a wallet signature for an arbitrary challenge.
type SignFunc = func(ctx context.Context, message string) (string, error)

// Identity is a key registered with the keys server that authorizes
// subscription actions for an account.
type Identity struct {
	Account    string             `json:"account"`
	Key        string             `json:"key"`
	PrivateKey ed25519.PrivateKey `json:"-"`
}

// DIDKey returns the decentralized identifier of the identity key.
func (id Identity) DIDKey() string {
	return "did:key:" + id.Key
}

// ParseAccount splits a chain account id of the form namespace:chain:address.
func ParseAccount(account string) (namespace string, chainID string, address string, err error) {
	parts := strings.Split(account, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid chain account id %q", account)
	}

	return parts[0], parts[1], parts[2], nil
}

// =============================================================================

type cacaoHeader struct {
	T string `json:"t"`
}

type cacaoPayload struct {
	Domain    string   `json:"domain"`
	Aud       string   `json:"aud"`
	Version   string   `json:"version"`
	Nonce     string   `json:"nonce"`
	Iat       string   `json:"iat"`
	Iss       string   `json:"iss"`
	Statement string   `json:"statement"`
	Resources []string `json:"resources"`
}

type cacaoSignature struct {
	T string `json:"t"`
	S string `json:"s"`
}

type cacao struct {
	H cacaoHeader    `json:"h"`
	P cacaoPayload   `json:"p"`
	S cacaoSignature `json:"s"`
}

type registerRequest struct {
	Cacao cacao `json:"cacao"`
}

// statement is the sentence the account owner agrees to when signing.
const statement = "I further authorize this app to send and receive messages on my behalf using this key: "

// RegisterIdentity creates a new identity key for the account and registers
// it with the keys server. The sign function is asked to sign the challenge
// that binds the identity key to the account.
func (c *Client) RegisterIdentity(ctx context.Context, account string, sign SignFunc) (Identity, error) {
	_, chainID, address, err := ParseAccount(account)
	if err != nil {
		return Identity{}, err
	}

	if sign == nil {
		return Identity{}, errors.New("sign function is required")
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("generating identity key: %w", err)
	}

	id := Identity{
		Account:    account,
		Key:        hex.EncodeToString(publicKey),
		PrivateKey: privateKey,
	}

	p := cacaoPayload{
		Domain:    c.cfg.AppDomain,
		Aud:       c.keysURL.String(),
		Version:   "1",
		Nonce:     uuid.NewString(),
		Iat:       time.Now().UTC().Format(time.RFC3339),
		Iss:       "did:pkh:" + account,
		Statement: statement + id.DIDKey(),
		Resources: []string{id.DIDKey()},
	}
	message := challenge(p, address, chainID)

	sig, err := sign(ctx, message)
	if err != nil {
		return Identity{}, fmt.Errorf("signing challenge: %w", err)
	}

	signer, err := wallet.RecoverAddress(message, sig)
	if err != nil {
		return Identity{}, fmt.Errorf("checking signature: %w", err)
	}
	if !strings.EqualFold(signer, address) {
		return Identity{}, fmt.Errorf("challenge signed by %s, expected %s", signer, address)
	}

	req := registerRequest{
		Cacao: cacao{
			H: cacaoHeader{T: "eip4361"},
			P: p,
			S: cacaoSignature{T: "eip191", S: sig},
		},
	}

	if err := c.doRequest(ctx, c.keysURL, http.MethodPost, "/identity", nil, req, nil); err != nil {
		return Identity{}, fmt.Errorf("registering identity: %w", err)
	}

	return id, nil
}

// challenge renders the EIP-4361 message the wallet signs.
func challenge(p cacaoPayload, address string, chainID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", p.Domain)
	fmt.Fprintf(&b, "%s\n\n", address)
	fmt.Fprintf(&b, "%s\n\n", p.Statement)
	fmt.Fprintf(&b, "URI: %s\n", p.Aud)
	fmt.Fprintf(&b, "Version: %s\n", p.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", chainID)
	fmt.Fprintf(&b, "Nonce: %s\n", p.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", p.Iat)
	b.WriteString("Resources:")
	for _, r := range p.Resources {
		fmt.Fprintf(&b, "\n- %s", r)
	}

	return b.String()
}
