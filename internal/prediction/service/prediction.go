// Package service holds the active prediction snapshot and answers queries
// against it. Reloads build a complete new engine off to the side and swap
// it in atomically; in-flight queries finish on the snapshot they started on.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/cache"
	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/events"
	"github.com/medflow/medpredict-backend/internal/prediction/repository"
	"github.com/medflow/medpredict-backend/pkg/errors"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/messaging"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
)

// DefaultListLimit caps risk lists when the caller passes no limit.
const DefaultListLimit = 50

// ReloadStatus describes the active snapshot and the last reload attempt.
type ReloadStatus struct {
	Loaded                bool       `json:"data_loaded"`
	Version               uint64     `json:"version"`
	Source                string     `json:"source"`
	LoadedAt              *time.Time `json:"loaded_at,omitempty"`
	Items                 int        `json:"total_medicines"`
	Batches               int        `json:"total_batches"`
	ConsumptionRecords    int        `json:"consumption_records"`
	LatestConsumptionDate *time.Time `json:"latest_consumption_date,omitempty"`
	DurationMS            int64      `json:"duration_ms"`
	LastAttemptAt         *time.Time `json:"last_attempt_at,omitempty"`
	LastError             string     `json:"last_error,omitempty"`
}

type snapshot struct {
	engine             *engine.Engine
	version            uint64
	loadedAt           time.Time
	consumptionRecords int
	duration           time.Duration
}

// Options wires the optional collaborators of a PredictionService.
type Options struct {
	Cache       cache.SummaryCache
	Events      *events.PredictionEventPublisher
	Metrics     *monitoring.MetricsCollector
	LoadTimeout time.Duration
	// EngineOptions are passed to every engine.New call.
	EngineOptions []engine.Option
	// Now stamps reload times; defaults to time.Now.
	Now func() time.Time
}

// PredictionService is the snapshot holder.
type PredictionService struct {
	loader  repository.Loader
	cache   cache.SummaryCache
	events  *events.PredictionEventPublisher
	metrics *monitoring.MetricsCollector
	logger  *logger.Logger

	loadTimeout   time.Duration
	engineOptions []engine.Option
	now           func() time.Time

	current atomic.Pointer[snapshot]

	reloadMu      sync.Mutex
	nextVersion   uint64
	lastAttemptAt time.Time
	lastErr       error
}

// NewPredictionService creates a new prediction service. No data is loaded
// until Reload is called.
func NewPredictionService(loader repository.Loader, opts Options, log *logger.Logger) *PredictionService {
	s := &PredictionService{
		loader:        loader,
		cache:         opts.Cache,
		events:        opts.Events,
		metrics:       opts.Metrics,
		logger:        log,
		loadTimeout:   opts.LoadTimeout,
		engineOptions: opts.EngineOptions,
		now:           opts.Now,
	}
	if s.cache == nil {
		s.cache = cache.NewNoopSummaryCache()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Reload loads fresh tables, builds a new engine and swaps it in. On failure
// the previous snapshot stays active and the returned status describes it.
func (s *PredictionService) Reload(ctx context.Context) (ReloadStatus, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := s.now()
	s.lastAttemptAt = start
	log := s.logger.WithComponent("reload")

	loadCtx := ctx
	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}

	eng, tables, err := s.build(loadCtx)
	if err != nil {
		s.lastErr = err
		s.metrics.RecordReload(s.loader.Source(), false, time.Since(start))
		log.Error().Err(err).Str("source", s.loader.Source()).Msg("snapshot reload failed, keeping previous snapshot")
		return s.statusLocked(), reloadError(err)
	}

	s.nextVersion++
	snap := &snapshot{
		engine:             eng,
		version:            s.nextVersion,
		loadedAt:           start,
		consumptionRecords: len(tables.Consumption),
		duration:           time.Since(start),
	}
	s.current.Store(snap)
	s.lastErr = nil

	s.afterReload(ctx, snap)

	log.Info().
		Uint64("version", snap.version).
		Str("source", s.loader.Source()).
		Int("items", eng.ItemCount()).
		Int("batches", eng.BatchCount()).
		Int("consumption_records", snap.consumptionRecords).
		Dur("duration", snap.duration).
		Msg("snapshot reloaded")

	return s.statusLocked(), nil
}

func (s *PredictionService) build(ctx context.Context) (*engine.Engine, domain.Tables, error) {
	tables, err := s.loader.Load(ctx)
	if err != nil {
		return nil, domain.Tables{}, err
	}

	eng, err := engine.New(tables, s.engineOptions...)
	if err != nil {
		return nil, domain.Tables{}, errors.InvalidData(err)
	}

	return eng, tables, nil
}

// afterReload refreshes metrics, drops cached summaries and announces the
// new snapshot. Failures here are logged, never returned.
func (s *PredictionService) afterReload(ctx context.Context, snap *snapshot) {
	eng := snap.engine
	source := s.loader.Source()

	expiry := eng.ExpiryRisks()
	stockout := eng.StockoutRisks()
	health := engine.HealthScore(expiry, stockout)

	s.metrics.RecordReload(source, true, snap.duration)
	s.metrics.SetSnapshotRows("medicines", eng.ItemCount())
	s.metrics.SetSnapshotRows("inventory_batches", eng.BatchCount())
	s.metrics.SetSnapshotRows("consumption_log", snap.consumptionRecords)
	s.metrics.SetHealthScore(health)
	for level := domain.RiskLow; level <= domain.RiskCritical; level++ {
		s.metrics.SetRiskCount("expiry", level.String(), countExpiry(expiry, level))
		s.metrics.SetRiskCount("stockout", level.String(), countStockout(stockout, level))
	}

	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate summary cache")
	}

	reloaded := messaging.SnapshotReloadedEvent{
		Source:             source,
		Items:              eng.ItemCount(),
		Batches:            eng.BatchCount(),
		ConsumptionRecords: snap.consumptionRecords,
		HealthScore:        health,
		DurationMS:         snap.duration.Milliseconds(),

		LatestConsumptionDate: eng.LatestConsumptionDate(),
	}
	s.events.PublishSnapshotReloaded(ctx, reloaded)

	for _, alert := range eng.Alerts().Alerts {
		if alert.Severity == domain.RiskCritical {
			s.events.PublishCriticalAlert(ctx, alert)
		}
	}
}

func countExpiry(risks []domain.ExpiryRisk, level domain.RiskLevel) int {
	n := 0
	for _, r := range risks {
		if r.RiskLevel == level {
			n++
		}
	}
	return n
}

func countStockout(risks []domain.StockoutRisk, level domain.RiskLevel) int {
	n := 0
	for _, r := range risks {
		if r.RiskLevel == level {
			n++
		}
	}
	return n
}

func insufficientHistory(what string) error {
	return errors.InsufficientData(fmt.Sprintf("not enough consumption history for %s", what))
}

func reloadError(err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return errors.ReloadFailed(err)
}

// Status reports the active snapshot and the last reload attempt.
func (s *PredictionService) Status() ReloadStatus {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.statusLocked()
}

func (s *PredictionService) statusLocked() ReloadStatus {
	status := ReloadStatus{Source: s.loader.Source()}
	if !s.lastAttemptAt.IsZero() {
		at := s.lastAttemptAt
		status.LastAttemptAt = &at
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}

	snap := s.current.Load()
	if snap == nil {
		return status
	}

	loadedAt := snap.loadedAt
	status.Loaded = true
	status.Version = snap.version
	status.LoadedAt = &loadedAt
	status.Items = snap.engine.ItemCount()
	status.Batches = snap.engine.BatchCount()
	status.ConsumptionRecords = snap.consumptionRecords
	status.DurationMS = snap.duration.Milliseconds()
	if latest := snap.engine.LatestConsumptionDate(); !latest.IsZero() {
		status.LatestConsumptionDate = &latest
	}
	return status
}

// Ready reports whether a snapshot is loaded.
func (s *PredictionService) Ready() bool {
	return s.current.Load() != nil
}

func (s *PredictionService) active() (*snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, errors.Unavailable("prediction data has not been loaded yet")
	}
	return snap, nil
}

func (s *PredictionService) item(snap *snapshot, id int64) (domain.Item, error) {
	it, ok := snap.engine.Item(id)
	if !ok {
		return domain.Item{}, errors.NotFound("medicine")
	}
	return it, nil
}
