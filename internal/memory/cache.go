package memory

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// DefaultPrior is the probability reported for a symbol the cache has
// never been updated with.
const DefaultPrior = 0.5

// weightClamp bounds every stored component so repeated updates cannot
// diverge. With finite labels, clamped state keeps all arithmetic finite.
const weightClamp = 8.0

// Cache is the continuous substrate: a shared latent vector of dim
// components plus one weight row per symbol. A symbol's truth estimate is
// the logistic squash of its row's dot product with the latent vector.
//
// The latent vector is stored permuted: logical dimension j lives at
// physical slot perm[j]. Remaps replace perm and move the physical values
// so the logical contents, and therefore every dot product, are unchanged.
// Weight rows are always addressed logically and are never moved.
//
// All mutation happens under the write lock; estimates take the read
// lock, so a remap is a full barrier over the cache and nothing can see a
// half-applied permutation.
type Cache struct {
	mu     sync.RWMutex
	dim    int
	lr     float64
	latent []float64 // physical storage
	perm   []int     // logical dim -> physical slot
	rows   [][]float64
	ops    uint64 // float-multiply count, for stats
}

// Estimate returns the graded truth probability for the ordinal's symbol,
// or DefaultPrior if the cache has never been updated with it.
func (c *Cache) Estimate(ordinal int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimate(ordinal)
}

// Update applies one gradient step for the ordinal toward the label.
func (c *Cache) Update(ordinal int, label float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(ordinal, label)
}

// Remap installs a new slot permutation under the write lock. Every
// in-flight Estimate or Update completes before the move begins and none
// may start until it is done; this is the system's only full barrier.
func (c *Cache) Remap(next []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyPermutation(next)
}

// Ops returns the cumulative float-multiply count of all updates.
func (c *Cache) Ops() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ops
}

// newCache builds a cache with a deterministic unit-scale latent vector.
// Weight rows start at zero, which makes a never-updated symbol's
// estimate exactly DefaultPrior.
func newCache(dim int, lr float64, seed int64) *Cache {
	c := &Cache{
		dim:    dim,
		lr:     lr,
		latent: make([]float64, dim),
		perm:   make([]int, dim),
	}
	rng := rand.New(rand.NewSource(seed))
	for j := 0; j < dim; j++ {
		c.latent[j] = rng.NormFloat64() / math.Sqrt(float64(dim))
		c.perm[j] = j
	}
	return c
}

// grow ensures a weight row exists for every ordinal up to n-1.
func (c *Cache) grow(n int) {
	for len(c.rows) < n {
		c.rows = append(c.rows, make([]float64, c.dim))
	}
}

// estimate computes the squashed projection for the ordinal's row.
// Caller holds at least the read lock.
func (c *Cache) estimate(ordinal int) float64 {
	if ordinal < 0 || ordinal >= len(c.rows) {
		return DefaultPrior
	}
	row := c.rows[ordinal]
	dot := 0.0
	for j := 0; j < c.dim; j++ {
		dot += row[j] * c.latent[c.perm[j]]
	}
	return sigmoid(dot)
}

// update performs one clamped gradient step moving the ordinal's row and
// the shared latent vector toward the label. The step is computed into
// scratch and validated before anything is written back, so a rejected
// update leaves the cache untouched. Caller holds the write lock.
func (c *Cache) update(ordinal int, label float64) error {
	c.grow(ordinal + 1)
	row := c.rows[ordinal]

	dot := 0.0
	for j := 0; j < c.dim; j++ {
		dot += row[j] * c.latent[c.perm[j]]
	}
	delta := label - sigmoid(dot)

	nextRow := make([]float64, c.dim)
	nextLatent := make([]float64, c.dim)
	for j := 0; j < c.dim; j++ {
		lv := c.latent[c.perm[j]]
		nextRow[j] = clamp(row[j] + c.lr*delta*lv)
		nextLatent[j] = clamp(lv + c.lr*delta*row[j])
		if math.IsNaN(nextRow[j]) || math.IsNaN(nextLatent[j]) {
			return fmt.Errorf("update ordinal %d: %w", ordinal, ErrNumericInstability)
		}
	}

	copy(row, nextRow)
	for j := 0; j < c.dim; j++ {
		c.latent[c.perm[j]] = nextLatent[j]
	}
	c.ops += uint64(4 * c.dim)
	return nil
}

// applyPermutation installs next as the new logical->physical mapping,
// moving the latent vector's physical values so logical contents are
// preserved. Caller holds the write lock.
func (c *Cache) applyPermutation(next []int) error {
	if len(next) != c.dim {
		return fmt.Errorf("permutation length %d for dim %d: %w", len(next), c.dim, ErrRemapViolation)
	}
	seen := make([]bool, c.dim)
	for _, p := range next {
		if p < 0 || p >= c.dim || seen[p] {
			return fmt.Errorf("non-bijective permutation: %w", ErrRemapViolation)
		}
		seen[p] = true
	}

	moved := make([]float64, c.dim)
	for j := 0; j < c.dim; j++ {
		moved[next[j]] = c.latent[c.perm[j]]
	}
	copy(c.latent, moved)
	copy(c.perm, next)
	return nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp(v float64) float64 {
	if v > weightClamp {
		return weightClamp
	}
	if v < -weightClamp {
		return -weightClamp
	}
	return v
}
