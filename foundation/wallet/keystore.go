package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Set of error variables for keystore lookups.
var (
	ErrNotFound = errors.New("wallet not found")
	ErrExists   = errors.New("wallet already exists")
)

// Keystore maintains the set of wallets found in a folder of key files.
type Keystore struct {
	root    string
	mu      sync.RWMutex
	wallets map[string]*Wallet
}

// NewKeystore constructs a keystore with the wallets from the root folder.
// The folder is created when it does not exist.
func NewKeystore(root string) (*Keystore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating keystore folder: %w", err)
	}

	ks := Keystore{
		root:    root,
		wallets: make(map[string]*Wallet),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if filepath.Ext(fileName) != KeyExtension {
			return nil
		}

		w, err := Load(fileName)
		if err != nil {
			return err
		}

		ks.wallets[w.Name()] = w
		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ks, nil
}

// Lookup returns the wallet for the specified name.
func (ks *Keystore) Lookup(name string) (*Wallet, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	w, exists := ks.wallets[name]
	if !exists {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}

	return w, nil
}

// Generate creates and stores a new wallet under the specified name.
func (ks *Keystore) Generate(name string) (*Wallet, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, exists := ks.wallets[name]; exists {
		return nil, fmt.Errorf("%q: %w", name, ErrExists)
	}

	w, err := Generate(filepath.Join(ks.root, name+KeyExtension))
	if err != nil {
		return nil, err
	}

	ks.wallets[name] = w
	return w, nil
}

// Copy returns a copy of the map of names and addresses.
func (ks *Keystore) Copy() map[string]string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	cpy := make(map[string]string, len(ks.wallets))
	for name, w := range ks.wallets {
		cpy[name] = w.Address()
	}
	return cpy
}

// Names returns the sorted set of wallet names.
func (ks *Keystore) Names() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	names := make([]string, 0, len(ks.wallets))
	for name := range ks.wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
