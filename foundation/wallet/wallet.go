// Package wallet provides account keys that can sign messages on behalf of
// a connected account using the Ethereum personal_sign format.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyExtension is the file extension of private key files.
const KeyExtension = ".ecdsa"

// legacyV is added to the recovery id by wallets implementing personal_sign.
const legacyV = 27

// Wallet holds a private key and signs messages with it.
type Wallet struct {
	name       string
	privateKey *ecdsa.PrivateKey
}

// New constructs a wallet from an existing private key.
func New(name string, privateKey *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		name:       name,
		privateKey: privateKey,
	}
}

// Load reads the private key stored at the specified path. The wallet is
// named after the file.
func Load(path string) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %q: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), KeyExtension)
	return New(name, privateKey), nil
}

// Generate creates a new private key and saves it at the specified path.
func Generate(path string) (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving key %q: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), KeyExtension)
	return New(name, privateKey), nil
}

// Name returns the name of the wallet.
func (w *Wallet) Name() string {
	return w.name
}

// Address returns the checksummed address for the wallet.
func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.privateKey.PublicKey).Hex()
}

// SignMessage produces a personal_sign signature for the message. The
// signature is returned hex encoded in the [R|S|V] format with V being
// 27 or 28.
func (w *Wallet) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += legacyV

	return hexutil.Encode(sig), nil
}

// RecoverAddress extracts the address of the account that produced the
// personal_sign signature for the message.
func RecoverAddress(message string, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}

	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length %d", len(sig))
	}

	if sig[crypto.RecoveryIDOffset] >= legacyV {
		sig[crypto.RecoveryIDOffset] -= legacyV
	}

	if v := sig[crypto.RecoveryIDOffset]; v != 0 && v != 1 {
		return "", errors.New("invalid recovery id")
	}

	publicKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}
