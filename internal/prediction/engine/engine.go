// Package engine computes consumption forecasts, expiry and stockout risks,
// consumption anomalies and an overall inventory health score from an
// immutable snapshot of the item master, the consumption log and the current
// batches.
//
// An Engine is built once by New and never mutated afterwards, so it is safe
// for concurrent use. Data-relative windows (the statistics window and
// anomaly windows) are anchored to the latest recorded consumption date.
// Expiry distances and the trend forecaster's seasonal month use the engine
// clock, which defaults to time.Now.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

// Defaults for query parameters and engine options.
const (
	DefaultForecastDays     = 30
	DefaultConfidenceLevel  = 0.95
	DefaultAnomalyDays      = 90
	DefaultAnomalyThreshold = 2.5
	DefaultDetectAllDays    = 30
	DefaultStatsWindowDays  = 90
)

const (
	minTrendPoints          = 30
	minAnomalyWindowSize    = 10
	rollingWindow           = 7
	forecastAnomalyLookback = 30
	summaryTopN             = 10
	dashboardTopN           = 5
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for expiry distances and the
// forecast seasonal month.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithStatsWindow sets the length of the trailing statistics window that
// drives expiry and stockout consumption rates. Non-positive values keep
// DefaultStatsWindowDays.
func WithStatsWindow(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.statsWindow = days
		}
	}
}

// WithAnomalyThreshold sets the z-score threshold used where no caller
// supplies one: forecast anomaly counts and DetectAllAnomalies.
// Non-positive values keep DefaultAnomalyThreshold.
func WithAnomalyThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.anomalyThreshold = threshold
		}
	}
}

// Engine is an immutable prediction snapshot.
type Engine struct {
	items     []domain.Item
	itemIndex map[int64]int
	batches   []domain.Batch

	// per-item history sorted by date, and the item ids that have any
	history      map[int64][]domain.ConsumptionRecord
	historyOrder []int64
	maxDate      time.Time

	stats      map[int64]domain.ItemStatistics
	trends     map[int64]domain.TrendStatistics
	trendOrder []int64

	statsWindow      int
	anomalyThreshold float64

	now func() time.Time
}

// New validates the tables and builds both statistics caches. The tables are
// copied; later changes by the caller do not affect the engine.
func New(tables domain.Tables, opts ...Option) (*Engine, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input tables: %w", err)
	}

	e := &Engine{
		items:     append([]domain.Item(nil), tables.Items...),
		itemIndex: make(map[int64]int, len(tables.Items)),
		batches:   make([]domain.Batch, len(tables.Batches)),
		history:   make(map[int64][]domain.ConsumptionRecord),
		now:       time.Now,

		statsWindow:      DefaultStatsWindowDays,
		anomalyThreshold: DefaultAnomalyThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, it := range e.items {
		e.itemIndex[it.ID] = i
	}

	for i, b := range tables.Batches {
		b.ExpiryDate = DateOf(b.ExpiryDate)
		if !b.ReceivedDate.IsZero() {
			b.ReceivedDate = DateOf(b.ReceivedDate)
		}
		e.batches[i] = b
	}

	for _, rec := range tables.Consumption {
		rec.Date = DateOf(rec.Date)
		if rec.Date.After(e.maxDate) {
			e.maxDate = rec.Date
		}
		e.history[rec.ItemID] = append(e.history[rec.ItemID], rec)
	}
	for _, recs := range e.history {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	}
	e.historyOrder = sortedKeys(e.history)

	e.stats = buildItemStatistics(e.history, e.historyOrder, e.maxDate, e.statsWindow)
	e.trends, e.trendOrder = buildTrendStatistics(e.history, e.historyOrder)

	return e, nil
}

func sortedKeys(m map[int64][]domain.ConsumptionRecord) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Today is the engine clock's calendar date.
func (e *Engine) Today() time.Time {
	return DateOf(e.now())
}

// LatestConsumptionDate is the anchor of the trailing statistics window. It
// is the zero time when there is no consumption history.
func (e *Engine) LatestConsumptionDate() time.Time {
	return e.maxDate
}

// Item looks up an item master entry.
func (e *Engine) Item(id int64) (domain.Item, bool) {
	i, ok := e.itemIndex[id]
	if !ok {
		return domain.Item{}, false
	}
	return e.items[i], true
}

// ItemCount is the number of item master entries.
func (e *Engine) ItemCount() int { return len(e.items) }

// BatchCount is the number of batches in stock.
func (e *Engine) BatchCount() int { return len(e.batches) }

func (e *Engine) itemName(id int64) string {
	if it, ok := e.Item(id); ok {
		return it.Name
	}
	return ""
}
