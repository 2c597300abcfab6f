package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/cache"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

// ErrNoModel is returned when the store holds no trained parameters yet.
var ErrNoModel = errors.New("no calibration model stored")

const modelKey = "calibration:model"

// CacheModelStore keeps calibration parameters in the cache layer so an
// external trainer can publish a new model and the engine picks it up on the
// next refresh tick.
type CacheModelStore struct {
	cache cache.Service
}

func NewCacheModelStore(c cache.Service) drepo.ModelStore {
	return &CacheModelStore{cache: c}
}

func (s *CacheModelStore) Load(ctx context.Context) (*models.CalibrationParams, error) {
	var p models.CalibrationParams
	if err := s.cache.Get(ctx, modelKey, &p); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrNoModel
		}
		return nil, fmt.Errorf("load calibration model: %w", err)
	}
	return &p, nil
}

func (s *CacheModelStore) Save(ctx context.Context, p *models.CalibrationParams) error {
	if p == nil {
		return errors.New("nil calibration params")
	}
	return s.cache.Set(ctx, modelKey, p, 0)
}

// Refresher polls the model store and hot-swaps the calibrator whenever a
// newer version appears.
type Refresher struct {
	store      drepo.ModelStore
	calibrator *gates.Calibrator
	interval   time.Duration
	log        *logger.Logger

	lastVersion string
}

func NewRefresher(store drepo.ModelStore, calibrator *gates.Calibrator, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{store: store, calibrator: calibrator, interval: interval, log: log}
}

// RefreshOnce loads the stored model and swaps it in if the version changed.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	p, err := r.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoModel) {
			return nil
		}
		return err
	}
	if p.Version == r.lastVersion {
		return nil
	}
	r.calibrator.Swap(p)
	r.lastVersion = p.Version
	r.log.Info("calibration model swapped",
		logger.String("version", p.Version),
		logger.Bool("isotonic", p.HasIsotonic()))
	return nil
}

// Run polls until the context is cancelled. Load errors are logged and the
// previous model stays active.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Warn("calibration refresh failed", logger.Error(err))
			}
		}
	}
}
