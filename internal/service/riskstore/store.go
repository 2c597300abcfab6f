package riskstore

import (
	"context"
	"errors"

	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/cache"
)

const limitsKey = "risk:limits"

// ErrNoLimits is returned when no operator-saved limit set exists.
var ErrNoLimits = errors.New("no persisted risk limits")

// Store persists operator-adjusted risk limits so they survive restarts.
type Store struct {
	cache cache.Service
}

func New(c cache.Service) *Store {
	return &Store{cache: c}
}

func (s *Store) Load(ctx context.Context) (gates.RiskLimits, error) {
	var limits gates.RiskLimits
	if err := s.cache.Get(ctx, limitsKey, &limits); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return limits, ErrNoLimits
		}
		return limits, err
	}
	return limits, nil
}

func (s *Store) Save(ctx context.Context, limits gates.RiskLimits) error {
	return s.cache.Set(ctx, limitsKey, limits, 0)
}
