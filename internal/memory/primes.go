package memory

// primeGen yields the increasing sequence of primes by incremental trial
// division. Deterministic and restartable: resuming from the last prime
// a checkpoint carried continues the sequence exactly where it left off.
// Each candidate is certified independently, so a resumed generator is
// correct no matter where it restarts.
type primeGen struct {
	last uint64
}

// next returns the smallest prime greater than every prime returned so far.
func (g *primeGen) next() uint64 {
	n := g.last
	for {
		switch {
		case n < 2:
			n = 2
		case n == 2:
			n = 3
		default:
			n += 2
		}
		if isPrimeU64(n) {
			g.last = n
			return n
		}
	}
}

// resume positions the generator just past an already-allocated prime.
func (g *primeGen) resume(last uint64) {
	g.last = last
}

// isPrimeU64 reports whether n is prime, by trial division.
func isPrimeU64(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
