package memory

import (
	"fmt"
	"math"
	"math/big"
)

// Snapshot is the complete persistable state of one Memory: the
// append-only symbol table, the serialized ledger product, the cache's
// latent vector (in the physical layout of Epoch's permutation) and
// per-symbol weight rows, and the cycle seed/epoch. A snapshot of a
// quiescent instance restores to identical query results for every
// symbol, observed or not.
type Snapshot struct {
	Dim      int
	Seed     int64
	Epoch    uint64
	Observes uint64
	Symbols  []Entry
	Ledger   []byte
	Latent   []float64
	Rows     [][]float64
}

// Snapshot captures the current state as one consistent cut: the
// snapshot guard holds off every observe and epoch advance for the
// duration of the capture, so the table, ledger, cache, and epoch always
// describe the same moment.
func (m *Memory) Snapshot() *Snapshot {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	latent := append([]float64(nil), m.cache.latent...)
	rows := make([][]float64, len(m.cache.rows))
	for i, row := range m.cache.rows {
		rows[i] = append([]float64(nil), row...)
	}

	return &Snapshot{
		Dim:      m.opts.Dim,
		Seed:     m.opts.Seed,
		Epoch:    m.cycle.Epoch(),
		Observes: m.observes.Load(),
		Symbols:  m.table.Entries(),
		Ledger:   m.ledger.Bytes(),
		Latent:   latent,
		Rows:     rows,
	}
}

// Restore builds a Memory from a validated snapshot. Dim and Seed come
// from the snapshot itself (the persisted layout depends on both);
// learning rate, triggers, and the symbol cap come from opts. Fails with
// ErrCorruptedCheckpoint if the snapshot is internally inconsistent.
func Restore(opts Options, snap *Snapshot) (*Memory, error) {
	if err := snap.validate(); err != nil {
		return nil, err
	}

	opts.Dim = snap.Dim
	opts.Seed = snap.Seed
	cache := newCache(snap.Dim, opts.LearningRate, snap.Seed)
	copy(cache.latent, snap.Latent)
	cache.rows = make([][]float64, len(snap.Rows))
	for i, row := range snap.Rows {
		cache.rows[i] = append([]float64(nil), row...)
	}

	m := &Memory{
		opts:   opts,
		table:  restoreSymbolTable(opts.MaxSymbols, snap.Symbols),
		ledger: restoreLedger(snap.Ledger),
		cache:  cache,
	}
	m.cycle = restoreCycle(cache, &m.snapMu, snap.Seed, snap.Epoch, opts.CycleInterval, opts.CycleEvery, opts.ShuffleEnabled)
	m.observes.Store(snap.Observes)
	return m, nil
}

// validate checks the snapshot's internal consistency: contiguous
// ordinals, identities forming the consecutive prime sequence from 2,
// weight rows matching the table, finite cache values, and a ledger
// product that factors completely into table primes with multiplicity
// at most one.
func (s *Snapshot) validate() error {
	if s.Dim <= 0 {
		return fmt.Errorf("dim %d: %w", s.Dim, ErrCorruptedCheckpoint)
	}
	if len(s.Latent) != s.Dim {
		return fmt.Errorf("latent length %d, dim %d: %w", len(s.Latent), s.Dim, ErrCorruptedCheckpoint)
	}
	for _, v := range s.Latent {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite latent value: %w", ErrCorruptedCheckpoint)
		}
	}

	if len(s.Rows) != len(s.Symbols) {
		return fmt.Errorf("%d weight rows for %d symbols: %w", len(s.Rows), len(s.Symbols), ErrCorruptedCheckpoint)
	}
	for i, row := range s.Rows {
		if len(row) != s.Dim {
			return fmt.Errorf("row %d length %d, dim %d: %w", i, len(row), s.Dim, ErrCorruptedCheckpoint)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite weight in row %d: %w", i, ErrCorruptedCheckpoint)
			}
		}
	}

	// Identities must be exactly the consecutive prime sequence from 2:
	// the generator resumes past the table's last prime, so a skipped
	// prime would derail every identity allocated after restore.
	seen := make(map[string]bool, len(s.Symbols))
	var gen primeGen
	for i, ent := range s.Symbols {
		if ent.Ordinal != i {
			return fmt.Errorf("ordinal gap at %d (got %d): %w", i, ent.Ordinal, ErrCorruptedCheckpoint)
		}
		if ent.Symbol == "" || seen[ent.Symbol] {
			return fmt.Errorf("duplicate or empty symbol at ordinal %d: %w", i, ErrCorruptedCheckpoint)
		}
		seen[ent.Symbol] = true
		if want := gen.next(); ent.Prime != want {
			return fmt.Errorf("identity %d at ordinal %d breaks the prime sequence (want %d): %w",
				ent.Prime, i, want, ErrCorruptedCheckpoint)
		}
	}

	prod := new(big.Int).SetBytes(s.Ledger)
	if prod.Sign() == 0 {
		prod = big.NewInt(1)
	}
	for _, ent := range s.Symbols {
		p := new(big.Int).SetUint64(ent.Prime)
		if new(big.Int).Mod(prod, p).Sign() == 0 {
			prod.Div(prod, p)
			if new(big.Int).Mod(prod, p).Sign() == 0 {
				return fmt.Errorf("prime %d has multiplicity > 1: %w", ent.Prime, ErrCorruptedCheckpoint)
			}
		}
	}
	if prod.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("ledger has factors outside the symbol table: %w", ErrCorruptedCheckpoint)
	}
	return nil
}
