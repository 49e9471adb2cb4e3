package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePowerSimple(t *testing.T) {
	for _, raw := range []uint64{1, 5, 1000000} {
		power, err := EffectivePower(Simple, raw)
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), power)
	}
}

func TestEffectivePowerWeighted(t *testing.T) {
	for _, raw := range []uint64{0, 1, 42, 1 << 40} {
		power, err := EffectivePower(Weighted, raw)
		assert.Nil(t, err)
		assert.Equal(t, raw, power)
	}
}

func TestEffectivePowerQuadratic(t *testing.T) {
	cases := []struct {
		raw  uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{64, 8},
		{81, 9},
		{99, 9},
		{100, 10},
		{101, 10},
		{10000, 100},
		// above the range where a lookup table would degrade to linear
		{1000000, 1000},
		{1 << 62, 1 << 31},
		{(1 << 32) - 1, 65535},
		{18446744065119617025, 4294967295},
	}

	for _, c := range cases {
		power, err := EffectivePower(Quadratic, c.raw)
		assert.Nil(t, err)
		assert.Equal(t, c.want, power, "isqrt(%d)", c.raw)
	}
}

// isqrt(n) must satisfy r*r <= n < (r+1)*(r+1) for every n.
func TestIsqrtBounds(t *testing.T) {
	for n := uint64(0); n < 5000; n++ {
		r := isqrt(n)
		assert.True(t, r*r <= n, "isqrt(%d)=%d too large", n, r)
		assert.True(t, (r+1)*(r+1) > n, "isqrt(%d)=%d too small", n, r)
	}
}

func TestEffectivePowerUnknownMechanism(t *testing.T) {
	_, err := EffectivePower(VotingMechanism(9), 10)
	assert.ErrorIs(t, err, ErrInvalidVotingType)
}

func TestParseMechanism(t *testing.T) {
	m, err := ParseMechanism("quadratic")
	assert.Nil(t, err)
	assert.Equal(t, Quadratic, m)

	_, err = ParseMechanism("cubic")
	assert.ErrorIs(t, err, ErrInvalidVotingType)
}
