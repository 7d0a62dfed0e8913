package testutil

import (
	"fmt"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/shopspring/decimal"
)

// FixtureFactory creates inventory fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates an item master row
func (f *FixtureFactory) Medicine(opts ...func(*domain.Item)) domain.Item {
	seq := f.nextSeq()
	item := domain.Item{
		ID:            int64(seq),
		Name:          fmt.Sprintf("Medicine %d", seq),
		Category:      "Antibiotic",
		Unit:          "tablet",
		ReorderLevel:  50,
		ShelfLifeDays: 730,
		UnitCost:      decimal.NewFromInt(10),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithMedicineName sets the item name
func WithMedicineName(name string) func(*domain.Item) {
	return func(it *domain.Item) {
		it.Name = name
	}
}

// WithUnitCost sets the item unit cost
func WithUnitCost(cost int64) func(*domain.Item) {
	return func(it *domain.Item) {
		it.UnitCost = decimal.NewFromInt(cost)
	}
}

// Batch creates a stock batch of the given item
func (f *FixtureFactory) Batch(item domain.Item, quantity int, expiry time.Time, opts ...func(*domain.Batch)) domain.Batch {
	seq := f.nextSeq()
	b := domain.Batch{
		ItemID:       item.ID,
		ItemName:     item.Name,
		Category:     item.Category,
		BatchNo:      fmt.Sprintf("B%04d", seq),
		Quantity:     quantity,
		Unit:         item.Unit,
		ExpiryDate:   expiry,
		ReceivedDate: expiry.AddDate(0, 0, -item.ShelfLifeDays),
		UnitCost:     item.UnitCost,
		TotalValue:   item.UnitCost.Mul(decimal.NewFromInt(int64(quantity))),
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// WithBatchNo sets the batch number
func WithBatchNo(batchNo string) func(*domain.Batch) {
	return func(b *domain.Batch) {
		b.BatchNo = batchNo
	}
}

// DailyConsumption creates one record per day for the given number of days
// ending at end (inclusive).
func DailyConsumption(itemID int64, end time.Time, days, quantity int) []domain.ConsumptionRecord {
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	records := make([]domain.ConsumptionRecord, 0, days)
	for i := days - 1; i >= 0; i-- {
		records = append(records, domain.ConsumptionRecord{
			ItemID:            itemID,
			Date:              end.AddDate(0, 0, -i),
			QuantityDispensed: quantity,
			PatientCount:      quantity / 2,
		})
	}
	return records
}

// SampleTables returns a small but complete snapshot: one fast mover that is
// about to run out, one slow mover with an expiring batch and one item
// without history.
func (f *FixtureFactory) SampleTables(asOf time.Time) domain.Tables {
	fast := f.Medicine(WithMedicineName("Paracetamol 500mg"), WithUnitCost(2))
	slow := f.Medicine(WithMedicineName("Insulin Glargine"), WithUnitCost(100))
	idle := f.Medicine(WithMedicineName("Atropine 1mg"))

	consumption := DailyConsumption(fast.ID, asOf, 120, 20)
	consumption = append(consumption, DailyConsumption(slow.ID, asOf, 120, 1)...)

	return domain.Tables{
		Items:       []domain.Item{fast, slow, idle},
		Consumption: consumption,
		Batches: []domain.Batch{
			f.Batch(fast, 60, asOf.AddDate(1, 0, 0)),
			f.Batch(slow, 100, asOf.AddDate(0, 0, 20)),
			f.Batch(idle, 10, asOf.AddDate(2, 0, 0)),
		},
	}
}
