package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// Rand is the engine's randomness source. Matches are created with a
// crypto-seeded source; tests install a seeded one and may queue die
// rolls for deterministic effect resolution.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
	// NextDie returns a 1-6 roll, honoring any queued overrides first.
	NextDie() int
	// QueueDieRolls injects the next die results, consumed in order.
	QueueDieRolls(rolls ...int)
}

type matchRand struct {
	r        *rand.Rand
	dieQueue []int
}

// NewMatchRand returns a Rand seeded from the system's cryptographic source.
func NewMatchRand() Rand {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed-ish seed rather than crash match creation.
		return NewSeededRand(1)
	}
	return NewSeededRand(int64(binary.LittleEndian.Uint64(b[:])))
}

// NewSeededRand returns a deterministic Rand for tests and replays.
func NewSeededRand(seed int64) Rand {
	return &matchRand{r: rand.New(rand.NewSource(seed))}
}

func (m *matchRand) Intn(n int) int {
	return m.r.Intn(n)
}

func (m *matchRand) Shuffle(n int, swap func(i, j int)) {
	m.r.Shuffle(n, swap)
}

func (m *matchRand) NextDie() int {
	if len(m.dieQueue) > 0 {
		result := m.dieQueue[0]
		m.dieQueue = m.dieQueue[1:]
		return result
	}
	return m.r.Intn(6) + 1
}

func (m *matchRand) QueueDieRolls(rolls ...int) {
	m.dieQueue = append(m.dieQueue, rolls...)
}
