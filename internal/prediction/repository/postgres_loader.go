package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/medflow/medpredict-backend/pkg/database"
)

const (
	selectMedicines = `
		SELECT medicine_id, name, category, unit, reorder_level, shelf_life_days, unit_cost
		FROM medicines
		ORDER BY medicine_id`

	selectConsumption = `
		SELECT medicine_id, date, quantity_dispensed, patient_count
		FROM consumption_log
		ORDER BY medicine_id, date`

	selectBatches = `
		SELECT b.medicine_id, COALESCE(m.name, '') AS medicine_name, COALESCE(m.category, '') AS category,
			b.batch_no, b.quantity, b.unit, b.expiry_date, b.received_date, b.unit_cost, b.total_value
		FROM inventory_batches b
		LEFT JOIN medicines m ON m.medicine_id = b.medicine_id
		WHERE b.quantity > 0
		ORDER BY b.expiry_date, b.batch_no`
)

// PostgresLoader reads the inventory tables the inventory service maintains.
type PostgresLoader struct {
	db *database.DB
}

// NewPostgresLoader creates a new Postgres loader
func NewPostgresLoader(db *database.DB) *PostgresLoader {
	return &PostgresLoader{db: db}
}

// Source implements Loader.
func (l *PostgresLoader) Source() string { return config.SourcePostgres }

// Load reads all three tables inside one read-only snapshot transaction so
// batches never reference an item that was added after the item read.
func (l *PostgresLoader) Load(ctx context.Context) (domain.Tables, error) {
	var tables domain.Tables

	err := l.db.ReadSnapshot(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &tables.Items, selectMedicines); err != nil {
			return mapLoadError("medicines", err)
		}
		if err := tx.SelectContext(ctx, &tables.Consumption, selectConsumption); err != nil {
			return mapLoadError("consumption_log", err)
		}
		if err := tx.SelectContext(ctx, &tables.Batches, selectBatches); err != nil {
			return mapLoadError("inventory_batches", err)
		}
		return nil
	})
	if err != nil {
		return domain.Tables{}, err
	}

	return tables, nil
}

func mapLoadError(table string, err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return fmt.Errorf("load %s: %w", table, appErr)
	}
	return fmt.Errorf("load %s: %w", table, err)
}
