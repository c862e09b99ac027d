package wallet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	address  = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

func Test_SignRecover(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	w := wallet.New("kennedy", pk)

	if w.Address() != address {
		t.Logf("got: %s", w.Address())
		t.Logf("exp: %s", address)
		t.Fatalf("Should get back the right address.")
	}

	const msg = "loans.example.com wants you to sign in with your Ethereum account"

	sig, err := w.SignMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("Should be able to sign the message: %s", err)
	}

	if len(sig) != 2+crypto.SignatureLength*2 {
		t.Fatalf("Should get back a 65 byte hex signature, got %d chars.", len(sig))
	}

	if v := sig[len(sig)-2:]; v != "1b" && v != "1c" {
		t.Logf("got: %s", v)
		t.Fatalf("Should get back a V of 27 or 28.")
	}

	addr, err := wallet.RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("Should be able to recover the address: %s", err)
	}

	if addr != address {
		t.Logf("got: %s", addr)
		t.Logf("exp: %s", address)
		t.Fatalf("Should recover the signing address.")
	}

	addr, err = wallet.RecoverAddress(msg+"!", sig)
	if err == nil && addr == address {
		t.Fatalf("Should not recover the signing address for a different message.")
	}
}

func Test_SignCancelled(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := wallet.New("kennedy", pk).SignMessage(ctx, "hello"); err == nil {
		t.Fatalf("Should not sign with a cancelled context.")
	}
}

func Test_Keystore(t *testing.T) {
	root := t.TempDir()

	ks, err := wallet.NewKeystore(root)
	if err != nil {
		t.Fatalf("Should be able to open an empty keystore: %s", err)
	}

	w, err := ks.Generate("pavel")
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	if _, err := ks.Generate("pavel"); !errors.Is(err, wallet.ErrExists) {
		t.Fatalf("Should not be able to generate the same wallet twice: %v", err)
	}

	ks2, err := wallet.NewKeystore(root)
	if err != nil {
		t.Fatalf("Should be able to reload the keystore: %s", err)
	}

	got, err := ks2.Lookup("pavel")
	if err != nil {
		t.Fatalf("Should be able to lookup the wallet: %s", err)
	}

	if got.Address() != w.Address() {
		t.Logf("got: %s", got.Address())
		t.Logf("exp: %s", w.Address())
		t.Fatalf("Should load the same key from disk.")
	}

	if _, err := ks2.Lookup("ceasar"); !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("Should not find an unknown wallet.")
	}

	if names := ks2.Names(); len(names) != 1 || names[0] != "pavel" {
		t.Logf("got: %v", names)
		t.Fatalf("Should get back the wallet names.")
	}
}
