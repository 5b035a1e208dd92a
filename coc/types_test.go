package coc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// A3: rounding is half-away-from-zero, not half-to-even (spec.md §4.2,
// §8 A3) — a 0.25hr tie must round up to 0.3, never down to 0.2.
func TestHoursRound_HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.25, "0.3"},
		{0.35, "0.4"},
		{0.15, "0.2"},
		{1.24, "1.2"},
		{1.26, "1.3"},
	}
	for _, c := range cases {
		got := NewHours(c.in).Round()
		assert.Equal(t, c.want, got.String(), c.in)
	}
}
