// Package blockwatch polls the chain for new blocks and dispatches a
// notification for each one to the subscribed account.
package blockwatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the time between poll ticks.
const DefaultInterval = 12 * time.Second

// Phase represents where the poller is in a cycle.
type Phase int

// Set of poller phases.
const (
	Idle Phase = iota
	Checking
	Dispatching
)

// String implements the fmt.Stringer interface.
func (p Phase) String() string {
	switch p {
	case Checking:
		return "checking"
	case Dispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface so a
// Snapshot can be decoded by API clients.
func (p *Phase) UnmarshalText(data []byte) error {
	switch string(data) {
	case "idle":
		*p = Idle
	case "checking":
		*p = Checking
	case "dispatching":
		*p = Dispatching
	default:
		return fmt.Errorf("unknown phase %q", data)
	}
	return nil
}

// Outcome reports what a single cycle did.
type Outcome string

// Set of cycle outcomes.
const (
	OutcomeGuarded    Outcome = "guarded"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeDispatched Outcome = "dispatched"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeFailed     Outcome = "failed"
	OutcomeBusy       Outcome = "busy"
	OutcomeQueued     Outcome = "queued"
)

// =============================================================================

// BlockReader represents the behavior of the chain rpc client.
type BlockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Gate reports who notifications go to and whether they may be sent.
type Gate interface {
	Target() (account string, subscribed bool)
}

// Dispatcher represents the behavior of the notification dispatcher.
type Dispatcher interface {
	SendBlock(ctx context.Context, account string, number string, idempotencyKey string) error
}

// EventHandler defines a function that is called when events
// occur in the processing of poll cycles.
type EventHandler func(v string, args ...any)

// Config represents the settings for a poller.
type Config struct {
	Reader     BlockReader
	Gate       Gate
	Dispatcher Dispatcher
	Interval   time.Duration
	Guarantee  Guarantee
	Overlap    Overlap
	LedgerSize int
	Enabled    bool
	EvHandler  EventHandler
}

// Snapshot is the observable state of the poller.
type Snapshot struct {
	Phase     Phase     `json:"phase"`
	Enabled   bool      `json:"enabled"`
	LastBlock string    `json:"last_block,omitempty"`
	Skipped   int       `json:"skipped"`
	Guarantee Guarantee `json:"guarantee"`
	Overlap   Overlap   `json:"overlap"`
	Interval  string    `json:"interval"`
}

// Poller runs the Idle -> Checking -> Dispatching cycle on every tick.
// Only one cycle is outstanding at any time.
type Poller struct {
	reader     BlockReader
	gate       Gate
	dispatcher Dispatcher
	interval   time.Duration
	guarantee  Guarantee
	overlap    Overlap
	evHandler  EventHandler

	enabled atomic.Bool

	mu        sync.Mutex
	phase     Phase
	pending   bool
	lastBlock string
	gen       uint64
	skipped   int
	ledger    *ledger

	wg       sync.WaitGroup
	shut     chan struct{}
	shutOnce sync.Once
}

// New constructs a poller.
func New(cfg Config) (*Poller, error) {
	switch {
	case cfg.Reader == nil:
		return nil, errors.New("block reader is required")
	case cfg.Gate == nil:
		return nil, errors.New("gate is required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Guarantee == "" {
		cfg.Guarantee = AtLeastOnce
	}
	if cfg.Overlap == "" {
		cfg.Overlap = OverlapSkip
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	p := Poller{
		reader:     cfg.Reader,
		gate:       cfg.Gate,
		dispatcher: cfg.Dispatcher,
		interval:   cfg.Interval,
		guarantee:  cfg.Guarantee,
		overlap:    cfg.Overlap,
		evHandler:  ev,
		shut:       make(chan struct{}),
	}
	p.enabled.Store(cfg.Enabled)

	if cfg.Guarantee == ExactlyOnce {
		p.ledger = newLedger(cfg.LedgerSize)
	}

	return &p, nil
}

// Start runs the ticker on its own goroutine until the context is cancelled
// or Shutdown is called. Each tick runs a cycle on a separate goroutine so
// a slow cycle never delays the ticker.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		p.evHandler("blockwatch: operations: G started: interval[%v]", p.interval)
		defer p.evHandler("blockwatch: operations: G completed")

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.wg.Add(1)
				go func() {
					defer p.wg.Done()
					p.Check(ctx)
				}()

			case <-ctx.Done():
				p.evHandler("blockwatch: operations: context done")
				return

			case <-p.shut:
				p.evHandler("blockwatch: operations: received shut signal")
				return
			}
		}
	}()
}

// Shutdown stops the ticker and waits for outstanding cycles to finish.
// Cancel the context given to Start to abort them.
func (p *Poller) Shutdown() {
	p.shutOnce.Do(func() {
		close(p.shut)
	})
	p.wg.Wait()
}

// Check runs one cycle. If a cycle is already outstanding the call is
// skipped or queued according to the overlap policy. A queued tick runs
// immediately after the outstanding cycle completes and the outcome of the
// last cycle run is returned.
func (p *Poller) Check(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	if p.phase != Idle {
		if p.overlap == OverlapQueue {
			p.pending = true
			p.mu.Unlock()
			p.evHandler("blockwatch: check: cycle outstanding: tick queued")
			return OutcomeQueued, nil
		}

		p.skipped++
		p.mu.Unlock()
		p.evHandler("blockwatch: check: cycle outstanding: tick skipped")
		return OutcomeBusy, nil
	}
	p.phase = Checking
	p.mu.Unlock()

	for {
		out, err := p.cycle(ctx)

		p.mu.Lock()
		if p.pending && ctx.Err() == nil {
			p.pending = false
			p.phase = Checking
			p.mu.Unlock()
			continue
		}
		p.pending = false
		p.phase = Idle
		p.mu.Unlock()

		return out, err
	}
}

// cycle performs the checking and dispatching phases.
func (p *Poller) cycle(ctx context.Context) (Outcome, error) {
	if !p.enabled.Load() {
		return OutcomeGuarded, nil
	}

	account, subscribed := p.gate.Target()
	if account == "" || !subscribed {
		return OutcomeGuarded, nil
	}

	n, err := p.reader.BlockNumber(ctx)
	if err != nil {
		p.evHandler("blockwatch: cycle: read block: ERROR: %s", err)
		return OutcomeFailed, fmt.Errorf("reading block number: %w", err)
	}
	block := strconv.FormatUint(n, 10)

	p.mu.Lock()
	last := p.lastBlock
	gen := p.gen
	p.mu.Unlock()

	if block == last {
		return OutcomeUnchanged, nil
	}

	var key string
	if p.guarantee == ExactlyOnce {
		key = IdempotencyKey(account, block)

		p.mu.Lock()
		delivered := p.ledger.contains(key)
		if delivered && p.gen == gen {
			p.lastBlock = block
		}
		p.mu.Unlock()

		if delivered {
			p.evHandler("blockwatch: cycle: block[%s]: already delivered", block)
			return OutcomeDuplicate, nil
		}
	}

	p.mu.Lock()
	p.phase = Dispatching
	p.mu.Unlock()

	p.evHandler("blockwatch: cycle: block[%s]: dispatching to %s", block, account)

	if err := p.dispatcher.SendBlock(ctx, account, block, key); err != nil {
		return OutcomeFailed, fmt.Errorf("dispatching block %s: %w", block, err)
	}

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}

	// A Reset while the send was outstanding belongs to a new session. The
	// block was delivered to the old account only.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen {
		return OutcomeDispatched, nil
	}

	p.lastBlock = block
	if p.ledger != nil {
		p.ledger.add(key)
	}

	return OutcomeDispatched, nil
}

// SetEnabled turns block notifications on or off.
func (p *Poller) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
	p.evHandler("blockwatch: enabled[%v]", enabled)
}

// LastBlock returns the last block number successfully dispatched.
func (p *Poller) LastBlock() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastBlock
}

// Reset forgets the last observed block and the delivery ledger.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastBlock = ""
	p.gen++
	if p.ledger != nil {
		p.ledger.reset()
	}
}

// Snapshot returns the observable state of the poller.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		Phase:     p.phase,
		Enabled:   p.enabled.Load(),
		LastBlock: p.lastBlock,
		Skipped:   p.skipped,
		Guarantee: p.guarantee,
		Overlap:   p.overlap,
		Interval:  p.interval.String(),
	}
}
