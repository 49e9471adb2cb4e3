package core

import "math/bits"

// EffectivePower converts a raw stake into voting power under the given
// mechanism. The mechanism is validated at proposal creation, so an unknown
// value here can only come from corrupted state.
func EffectivePower(m VotingMechanism, raw uint64) (uint64, error) {
	switch m {
	case Simple:
		return 1, nil
	case Weighted:
		return raw, nil
	case Quadratic:
		return isqrt(raw), nil
	}
	return 0, ErrInvalidVotingType
}

// isqrt returns the integer square root of n, the largest r with r*r <= n.
// Newton's method with a power-of-two seed >= sqrt(n), so the iteration
// converges from above and no intermediate value overflows.
func isqrt(n uint64) uint64 {
	if n < 2 {
		return n
	}

	x := uint64(1) << ((bits.Len64(n) + 1) / 2)
	for {
		y := (x + n/x) / 2
		if y >= x {
			return x
		}
		x = y
	}
}
