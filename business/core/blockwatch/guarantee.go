package blockwatch

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Guarantee defines how hard the poller tries to avoid duplicate
// notifications for the same block.
type Guarantee string

// Set of delivery guarantees.
const (

	// AtLeastOnce retries a failed block on the next tick. A send whose
	// response was lost is sent again.
	AtLeastOnce Guarantee = "at-least-once"

	// ExactlyOnce also sends an idempotency key with every notification and
	// never sends a block that was already delivered, even when the chain
	// head moves back to it.
	ExactlyOnce Guarantee = "exactly-once"
)

// ParseGuarantee validates the guarantee name.
func ParseGuarantee(s string) (Guarantee, error) {
	switch g := Guarantee(s); g {
	case AtLeastOnce, ExactlyOnce:
		return g, nil
	}
	return "", fmt.Errorf("unknown delivery guarantee %q", s)
}

// Overlap defines what happens to a tick that arrives while a cycle is
// still outstanding.
type Overlap string

// Set of overlap policies.
const (
	OverlapSkip  Overlap = "skip"
	OverlapQueue Overlap = "queue"
)

// ParseOverlap validates the overlap policy name.
func ParseOverlap(s string) (Overlap, error) {
	switch o := Overlap(s); o {
	case OverlapSkip, OverlapQueue:
		return o, nil
	}
	return "", fmt.Errorf("unknown overlap policy %q", s)
}

// IdempotencyKey returns the key identifying the notification of a block
// to an account.
func IdempotencyKey(account string, block string) string {
	return crypto.Keccak256Hash([]byte(account + "/" + block)).Hex()
}

// =============================================================================

// defaultLedgerSize is the number of delivered blocks remembered.
const defaultLedgerSize = 256

// ledger remembers the most recently delivered keys in insertion order.
type ledger struct {
	size int
	keys []string
	set  map[string]struct{}
}

func newLedger(size int) *ledger {
	if size <= 0 {
		size = defaultLedgerSize
	}

	return &ledger{
		size: size,
		set:  make(map[string]struct{}, size),
	}
}

func (l *ledger) contains(key string) bool {
	_, exists := l.set[key]
	return exists
}

func (l *ledger) add(key string) {
	if l.contains(key) {
		return
	}

	if len(l.keys) == l.size {
		delete(l.set, l.keys[0])
		l.keys = l.keys[1:]
	}

	l.keys = append(l.keys, key)
	l.set[key] = struct{}{}
}

func (l *ledger) reset() {
	l.keys = nil
	l.set = make(map[string]struct{}, l.size)
}
