package battle

import (
	"math/rand"
	"time"
)

// Rand is the random source used by the simulation. *rand.Rand satisfies it.
// Injecting it keeps battle outcomes reproducible under test.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a time-seeded source for production use.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
