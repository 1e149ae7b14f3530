package memory

import (
	"fmt"
	"sync"
)

// Entry is one symbol's identity: its prime and its first-observation
// ordinal. Both are assigned once and never change.
type Entry struct {
	Symbol  string
	Prime   uint64
	Ordinal int
}

// SymbolTable maps each distinct symbol to a unique prime, assigned in
// first-observation order from an increasing prime sequence. The mapping
// is append-only: primes are never reassigned or reused.
type SymbolTable struct {
	mu      sync.RWMutex
	max     int
	entries map[string]Entry
	order   []string // ordinal -> symbol
	gen     primeGen
}

// NewSymbolTable creates a table capped at max distinct symbols.
func NewSymbolTable(max int) *SymbolTable {
	return &SymbolTable{
		max:     max,
		entries: make(map[string]Entry),
	}
}

// Resolve returns the symbol's entry, allocating the next unused prime on
// first sight. Fails with ErrCapacityExceeded at the configured cap; a
// failed call allocates nothing.
func (t *SymbolTable) Resolve(symbol string) (Entry, error) {
	t.mu.RLock()
	ent, ok := t.entries[symbol]
	t.mu.RUnlock()
	if ok {
		return ent, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check under the write lock; another caller may have won the race.
	if ent, ok := t.entries[symbol]; ok {
		return ent, nil
	}
	if t.max > 0 && len(t.order) >= t.max {
		return Entry{}, fmt.Errorf("resolve %q: %w", symbol, ErrCapacityExceeded)
	}
	ent = Entry{
		Symbol:  symbol,
		Prime:   t.gen.next(),
		Ordinal: len(t.order),
	}
	t.entries[symbol] = ent
	t.order = append(t.order, symbol)
	return ent, nil
}

// Lookup is the read-only variant of Resolve: it never allocates, so
// querying an unseen symbol cannot mutate state.
func (t *SymbolTable) Lookup(symbol string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ent, ok := t.entries[symbol]
	return ent, ok
}

// Len returns the number of distinct symbols seen.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Entries returns all entries in ordinal order, for checkpointing.
func (t *SymbolTable) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.order))
	for i, sym := range t.order {
		out[i] = t.entries[sym]
	}
	return out
}

// restoreSymbolTable rebuilds a table from checkpointed entries. The
// entries are assumed validated (contiguous ordinals, the consecutive
// prime sequence from 2).
func restoreSymbolTable(max int, entries []Entry) *SymbolTable {
	t := NewSymbolTable(max)
	for _, ent := range entries {
		t.entries[ent.Symbol] = ent
		t.order = append(t.order, ent.Symbol)
	}
	if n := len(entries); n > 0 {
		t.gen.resume(entries[n-1].Prime)
	}
	return t
}
