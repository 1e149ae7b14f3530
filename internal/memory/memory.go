// Package memory implements a dual-substrate store for streaming
// symbolic observation: an exact membership ledger encoding learned
// symbols as prime factors of one arbitrary-precision product, fused
// with a bounded continuous cache giving graded truth estimates, plus a
// cycle scheduler that periodically remaps the cache's physical layout
// without disturbing either discrete identity or observable answers.
package memory

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures one Memory instance.
type Options struct {
	Dim            int           // cache dimensionality
	LearningRate   float64       // cache gradient step size
	MaxSymbols     int           // distinct-symbol cap, 0 = unlimited
	CycleInterval  time.Duration // wall-clock remap trigger, 0 disables
	CycleEvery     uint64        // observe-count remap trigger, 0 disables
	ShuffleEnabled bool          // false freezes the cycle scheduler
	Seed           int64         // drives latent init and remap permutations
}

// DefaultOptions mirrors the reference deployment: 128 dimensions, a
// remap every 15 minutes or 900 observations, 100k symbol cap.
func DefaultOptions() Options {
	return Options{
		Dim:            128,
		LearningRate:   0.05,
		MaxSymbols:     100000,
		CycleInterval:  15 * time.Minute,
		CycleEvery:     900,
		ShuffleEnabled: true,
		Seed:           137,
	}
}

// Result is one query's answer. The two signals are independent: Exact
// comes from the ledger alone and Probability from the cache alone;
// combining them into a decision is the caller's business.
type Result struct {
	Probability float64 `json:"probability"`
	Exact       bool    `json:"exact"`
}

// Stats summarizes a Memory's size and activity.
type Stats struct {
	Symbols    int    `json:"symbols"`
	LedgerBits int    `json:"ledger_bits"`
	Dim        int    `json:"dim"`
	Epoch      uint64 `json:"epoch"`
	Observes   uint64 `json:"observes"`
	CacheOps   uint64 `json:"cache_ops"`
}

// Memory is the façade over both substrates. Construct one per logical
// memory; instances are independent and safe for concurrent use.
//
// snapMu makes checkpoints consistent cuts: every Observe and every
// epoch advance holds it in read mode for its full duration, and
// Snapshot takes it in write mode, so a capture never straddles a
// half-finished observe or a remap.
type Memory struct {
	opts     Options
	snapMu   sync.RWMutex
	table    *SymbolTable
	ledger   *Ledger
	cache    *Cache
	cycle    *Cycle
	observes atomic.Uint64
}

// New creates an empty Memory.
func New(opts Options) *Memory {
	cache := newCache(opts.Dim, opts.LearningRate, opts.Seed)
	m := &Memory{
		opts:   opts,
		table:  NewSymbolTable(opts.MaxSymbols),
		ledger: NewLedger(),
		cache:  cache,
	}
	m.cycle = newCycle(cache, &m.snapMu, opts.Seed, opts.CycleInterval, opts.CycleEvery, opts.ShuffleEnabled)
	return m
}

// Observe records one labeled sighting of a symbol: the symbol's prime
// is resolved (allocated on first sight), the cache takes one gradient
// step toward the label, and the ledger gains the prime as a factor.
// A label outside [0,1] is clamped; a non-finite label is rejected
// before any state is touched. On error nothing is marked.
func (m *Memory) Observe(symbol string, label float64) error {
	if math.IsNaN(label) || math.IsInf(label, 0) {
		return fmt.Errorf("observe %q: %w", symbol, ErrNumericInstability)
	}
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	if label < 0 {
		label = 0
	} else if label > 1 {
		label = 1
	}

	ent, err := m.table.Resolve(symbol)
	if err != nil {
		return err
	}
	if err := m.cache.Update(ent.Ordinal, label); err != nil {
		return err
	}
	m.ledger.Mark(ent.Prime)

	return m.cycle.noteObserve(m.observes.Add(1))
}

// Query returns the cache's graded probability and the ledger's exact
// membership bit for the symbol. Never mutates state: an unseen symbol
// yields Exact=false and the default prior.
func (m *Memory) Query(symbol string) Result {
	ent, ok := m.table.Lookup(symbol)
	if !ok {
		return Result{Probability: DefaultPrior, Exact: false}
	}
	return Result{
		Probability: m.cache.Estimate(ent.Ordinal),
		Exact:       m.ledger.Contains(ent.Prime),
	}
}

// Stats reports current sizes and counters.
func (m *Memory) Stats() Stats {
	return Stats{
		Symbols:    m.table.Len(),
		LedgerBits: m.ledger.Bits(),
		Dim:        m.opts.Dim,
		Epoch:      m.cycle.Epoch(),
		Observes:   m.observes.Load(),
		CacheOps:   m.cache.Ops(),
	}
}

// AdvanceEpoch forces one remap epoch regardless of triggers. No-op when
// shuffle is disabled.
func (m *Memory) AdvanceEpoch() error {
	return m.cycle.Advance()
}

// StartCycleTimer launches the wall-clock remap trigger.
func (m *Memory) StartCycleTimer() {
	m.cycle.Start()
}

// Stop shuts down background goroutines.
func (m *Memory) Stop() {
	m.cycle.Stop()
}
