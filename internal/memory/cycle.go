package memory

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Cycle schedules the periodic remap of the continuous cache. Two
// independent triggers may be enabled at once: a wall-clock ticker and an
// observation-count threshold checked on the observe path; either fires
// an epoch advance. The scheduler never touches the ledger or the symbol
// table.
//
// States: Stable (no remap in progress) and Remapping (exclusive remap
// under the cache's write barrier). Disabling shuffle freezes the
// scheduler in Stable permanently.
type Cycle struct {
	cache    *Cache
	guard    *sync.RWMutex // the owning Memory's snapshot guard
	seed     int64
	every    uint64        // observe-count trigger, 0 disables
	interval time.Duration // wall-clock trigger, 0 disables
	enabled  bool

	mu        sync.Mutex // serializes epoch advances
	epoch     uint64
	remapping atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newCycle(cache *Cache, guard *sync.RWMutex, seed int64, interval time.Duration, every uint64, enabled bool) *Cycle {
	return &Cycle{
		cache:    cache,
		guard:    guard,
		seed:     seed,
		every:    every,
		interval: interval,
		enabled:  enabled,
		stopCh:   make(chan struct{}),
	}
}

// Epoch returns the number of completed remaps.
func (c *Cycle) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Remapping reports whether a remap is in progress right now.
func (c *Cycle) Remapping() bool {
	return c.remapping.Load()
}

// epochPerm generates the deterministic permutation for an epoch. The
// same seed and epoch always produce the same layout, so a restored
// instance reconstructs the layout its snapshot was taken under.
func epochPerm(seed int64, epoch uint64, dim int) []int {
	if epoch == 0 {
		perm := make([]int, dim)
		for j := range perm {
			perm[j] = j
		}
		return perm
	}
	rng := rand.New(rand.NewSource(seed + int64(epoch)))
	return rng.Perm(dim)
}

// Advance performs one remap epoch: Stable -> Remapping -> Stable. No-op
// when shuffle is disabled. Concurrent observes and queries are held off
// by the cache's write barrier for the duration of the move, which is
// proportional to the cache dimension, not the symbol count.
func (c *Cycle) Advance() error {
	if !c.enabled {
		return nil
	}
	c.guard.RLock()
	defer c.guard.RUnlock()
	return c.advance()
}

// advance is Advance without the snapshot guard, for callers (the
// observe path) that already hold it in read mode.
func (c *Cycle) advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := epochPerm(c.seed, c.epoch+1, c.cache.dim)
	c.remapping.Store(true)
	err := c.cache.Remap(next)
	c.remapping.Store(false)
	if err != nil {
		return fmt.Errorf("epoch %d: %w", c.epoch+1, err)
	}
	c.epoch++
	return nil
}

// noteObserve is called with the running observe count and fires the
// count-based trigger on every multiple of the threshold. The caller
// holds the snapshot guard in read mode.
func (c *Cycle) noteObserve(count uint64) error {
	if !c.enabled || c.every == 0 || count%c.every != 0 {
		return nil
	}
	return c.advance()
}

// Start launches the wall-clock trigger goroutine. No-op when shuffle is
// disabled or no interval is configured.
func (c *Cycle) Start() {
	if !c.enabled || c.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Advance(); err != nil {
					log.Printf("cycle advance: %v", err)
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the trigger goroutine. Safe to call more than once.
func (c *Cycle) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// restoreCycle rebuilds a scheduler at a checkpointed epoch and installs
// that epoch's permutation without moving any physical values; the
// snapshot's latent vector is already stored in that layout.
func restoreCycle(cache *Cache, guard *sync.RWMutex, seed int64, epoch uint64, interval time.Duration, every uint64, enabled bool) *Cycle {
	c := newCycle(cache, guard, seed, interval, every, enabled)
	c.epoch = epoch
	copy(cache.perm, epochPerm(seed, epoch, cache.dim))
	return c
}
