package portalgrp

// Wallet is a wallet that can be connected.
type Wallet struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// NewWallet is what we require to generate a wallet.
type NewWallet struct {
	Name string `json:"name" validate:"required,alphanum,max=32"`
}

// Connect is what we require to connect a wallet.
type Connect struct {
	Wallet string `json:"wallet" validate:"required"`
}

// Toggle is what we require to turn block notifications on or off.
type Toggle struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Identity is the registered identity of the connected account.
type Identity struct {
	Account string `json:"account"`
	Key     string `json:"key"`
}

// Check reports the outcome of a poll cycle.
type Check struct {
	Outcome string `json:"outcome"`
}
