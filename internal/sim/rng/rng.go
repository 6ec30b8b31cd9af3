// Package rng provides the settlement's seeded generator.
//
// Every probabilistic decision in the simulation draws from exactly one Gen
// per settlement, in a fixed call order per tick. The generator state is a
// single exported word so it rides along in snapshots and replays
// byte-identically.
package rng

// Gen is a 64-bit xorshift generator.
type Gen struct {
	State uint64 `json:"state"`
}

// New seeds a generator. A zero seed would lock xorshift at zero forever, so
// it is replaced with a fixed non-zero constant.
func New(seed int64) Gen {
	s := uint64(seed)
	if s == 0 {
		s = 0x9E3779B97F4A7C15
	}
	return Gen{State: s}
}

// Next returns the next 64-bit value of the stream.
func (g *Gen) Next() uint64 {
	x := g.State
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.State = x
	return x
}

// Float01 returns a value in [0,1).
func (g *Gen) Float01() float64 {
	return float64(g.Next()>>11) / (1 << 53)
}

// Bounded returns a value in [0,n). n must be > 0.
func (g *Gen) Bounded(n int) int {
	if n <= 0 {
		return 0
	}
	return int(g.Next() % uint64(n))
}
