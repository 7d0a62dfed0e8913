package engine

import (
	"testing"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// refDate is a Sunday.
var refDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func testItem(id int64, name string, cost int64) domain.Item {
	return domain.Item{
		ID:            id,
		Name:          name,
		Category:      "Analgesic",
		Unit:          "tablet",
		ReorderLevel:  100,
		ShelfLifeDays: 730,
		UnitCost:      decimal.NewFromInt(cost),
	}
}

func testBatch(id int64, name, batchNo string, qty int, expiry time.Time, cost int64) domain.Batch {
	return domain.Batch{
		ItemID:       id,
		ItemName:     name,
		Category:     "Analgesic",
		BatchNo:      batchNo,
		Quantity:     qty,
		Unit:         "tablet",
		ExpiryDate:   expiry,
		ReceivedDate: expiry.AddDate(-1, 0, 0),
		UnitCost:     decimal.NewFromInt(cost),
		TotalValue:   decimal.NewFromInt(cost * int64(qty)),
	}
}

// daily builds one record per day for consecutive days ending at end, with
// quantities produced by qty(i) for i counting from the oldest day.
func daily(id int64, end time.Time, days int, qty func(i int) int) []domain.ConsumptionRecord {
	recs := make([]domain.ConsumptionRecord, days)
	start := end.AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		recs[i] = domain.ConsumptionRecord{
			ItemID:            id,
			Date:              start.AddDate(0, 0, i),
			QuantityDispensed: qty(i),
			PatientCount:      1,
		}
	}
	return recs
}

func constant(q int) func(int) int {
	return func(int) int { return q }
}

func newTestEngine(t *testing.T, tables domain.Tables, opts ...Option) *Engine {
	t.Helper()
	e, err := New(tables, append([]Option{fixedClock(refDate)}, opts...)...)
	require.NoError(t, err)
	return e
}
