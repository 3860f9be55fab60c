package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces references of the form TRX-<unix millis>-<0..999>.
type NumberGenerator struct {
	now  func() time.Time
	intN func(n int) int
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, intN: rand.IntN}
}

// NewFixedNumberGenerator is deterministic; used to force collisions in tests.
func NewFixedNumberGenerator(now func() time.Time, intN func(n int) int) *NumberGenerator {
	return &NumberGenerator{now: now, intN: intN}
}

func (g *NumberGenerator) Next() string {
	return fmt.Sprintf("TRX-%d-%d", g.now().UnixMilli(), g.intN(1000))
}
