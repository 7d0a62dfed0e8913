package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Item is a row of the item master.
type Item struct {
	ID            int64           `db:"medicine_id" json:"medicine_id" validate:"gt=0"`
	Name          string          `db:"name" json:"name" validate:"required"`
	Category      string          `db:"category" json:"category"`
	Unit          string          `db:"unit" json:"unit"`
	ReorderLevel  int             `db:"reorder_level" json:"reorder_level" validate:"gte=0"`
	ShelfLifeDays int             `db:"shelf_life_days" json:"shelf_life_days" validate:"gte=0"`
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unit_cost"`
}

// ConsumptionRecord is one day of dispensing for one item.
type ConsumptionRecord struct {
	ItemID            int64     `db:"medicine_id" json:"medicine_id" validate:"gt=0"`
	Date              time.Time `db:"date" json:"date"`
	QuantityDispensed int       `db:"quantity_dispensed" json:"quantity_dispensed" validate:"gte=0"`
	PatientCount      int       `db:"patient_count" json:"patient_count" validate:"gte=0"`
}

// Batch is a physical lot of an item currently in stock.
type Batch struct {
	ItemID       int64           `db:"medicine_id" json:"medicine_id" validate:"gt=0"`
	ItemName     string          `db:"medicine_name" json:"medicine_name"`
	Category     string          `db:"category" json:"category"`
	BatchNo      string          `db:"batch_no" json:"batch_no" validate:"required"`
	Quantity     int             `db:"quantity" json:"quantity" validate:"gte=0"`
	Unit         string          `db:"unit" json:"unit"`
	ExpiryDate   time.Time       `db:"expiry_date" json:"expiry_date"`
	ReceivedDate time.Time       `db:"received_date" json:"received_date"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalValue   decimal.Decimal `db:"total_value" json:"total_value"`
}

// Tables is the complete input for one engine snapshot.
type Tables struct {
	Items       []Item
	Consumption []ConsumptionRecord
	Batches     []Batch
}

var validate = validator.New()

// Validate checks every row and returns the first problem found, naming the
// table and row index.
func (t *Tables) Validate() error {
	seen := make(map[int64]struct{}, len(t.Items))
	for i := range t.Items {
		it := &t.Items[i]
		if err := validate.Struct(it); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
		if it.UnitCost.IsNegative() {
			return fmt.Errorf("items[%d]: unit cost must not be negative", i)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("items[%d]: duplicate item id %d", i, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	for i := range t.Consumption {
		rec := &t.Consumption[i]
		if err := validate.Struct(rec); err != nil {
			return fmt.Errorf("consumption[%d]: %w", i, err)
		}
		if rec.Date.IsZero() {
			return fmt.Errorf("consumption[%d]: missing date", i)
		}
	}

	for i := range t.Batches {
		b := &t.Batches[i]
		if err := validate.Struct(b); err != nil {
			return fmt.Errorf("batches[%d]: %w", i, err)
		}
		if b.ExpiryDate.IsZero() {
			return fmt.Errorf("batches[%d]: missing expiry date", i)
		}
		if b.UnitCost.IsNegative() {
			return fmt.Errorf("batches[%d]: unit cost must not be negative", i)
		}
	}

	return nil
}
