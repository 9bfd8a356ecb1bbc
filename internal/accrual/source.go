// internal/accrual/source.go
package accrual

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// AmountSource produces the amount credited on each accrual tick.
type AmountSource interface {
	Next(min, max decimal.Decimal) decimal.Decimal
}

// RandomSource samples uniformly from [min, max], rounded to 8 decimal places.
type RandomSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomSource) Next(min, max decimal.Decimal) decimal.Decimal {
	if !max.GreaterThan(min) {
		return min
	}
	s.mu.Lock()
	f := s.rnd.Float64()
	s.mu.Unlock()

	return min.Add(max.Sub(min).Mul(decimal.NewFromFloat(f))).Round(8)
}

// Fixed always returns its own value.
type Fixed decimal.Decimal

func (f Fixed) Next(_, _ decimal.Decimal) decimal.Decimal {
	return decimal.Decimal(f)
}
