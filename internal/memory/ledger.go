package memory

import (
	"math/big"
	"sync"
	"sync/atomic"
)

// Ledger is the discrete membership store: a single arbitrary-precision
// product whose divisibility by a symbol's prime encodes "learned".
// Writers serialize through a mutex and publish a fresh *big.Int via an
// atomic pointer, so readers never see a torn or half-multiplied value.
//
// The product's bit length grows by roughly the bit length of each new
// prime, i.e. linearly in distinct symbols. The MaxSymbols cap bounds
// this; deployments past that bound should shard symbols across several
// ledgers rather than raise the cap.
type Ledger struct {
	mu      sync.Mutex
	product atomic.Pointer[big.Int]
}

// NewLedger returns an empty ledger (product 1, no factors).
func NewLedger() *Ledger {
	l := &Ledger{}
	l.product.Store(big.NewInt(1))
	return l
}

// Mark records the prime as a factor. Idempotent: marking a prime already
// present is a no-op, so the membership bit is stable across repeats.
func (l *Ledger) Mark(prime uint64) {
	p := new(big.Int).SetUint64(prime)
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.product.Load()
	if new(big.Int).Mod(cur, p).Sign() == 0 {
		return
	}
	l.product.Store(new(big.Int).Mul(cur, p))
}

// Contains reports whether the prime divides the product. The division
// costs time proportional to the product's bit length, which grows with
// the count of learned symbols; there is no per-symbol lookup structure.
func (l *Ledger) Contains(prime uint64) bool {
	p := new(big.Int).SetUint64(prime)
	cur := l.product.Load()
	return new(big.Int).Mod(cur, p).Sign() == 0
}

// Bits returns the product's bit length, the ledger's storage footprint.
func (l *Ledger) Bits() int {
	return l.product.Load().BitLen()
}

// Bytes returns the product's big-endian serialized form.
func (l *Ledger) Bytes() []byte {
	return l.product.Load().Bytes()
}

// restoreLedger rebuilds a ledger from its serialized product. An empty
// byte slice restores the initial product 1.
func restoreLedger(raw []byte) *Ledger {
	l := &Ledger{}
	prod := new(big.Int).SetBytes(raw)
	if prod.Sign() == 0 {
		prod = big.NewInt(1)
	}
	l.product.Store(prod)
	return l
}
