package repository

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/medflow/medpredict-backend/pkg/database"
	apperrors "github.com/medflow/medpredict-backend/pkg/errors"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	medicineColumns    = []string{"medicine_id", "name", "category", "unit", "reorder_level", "shelf_life_days", "unit_cost"}
	consumptionColumns = []string{"medicine_id", "date", "quantity_dispensed", "patient_count"}
	batchColumns       = []string{"medicine_id", "medicine_name", "category", "batch_no", "quantity", "unit", "expiry_date", "received_date", "unit_cost", "total_value"}
)

func newPostgresLoader(t *testing.T) (*PostgresLoader, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	return NewPostgresLoader(database.Wrap(mockDB.DB, logger.Nop())), mockDB
}

func TestPostgresLoader_Load(t *testing.T) {
	loader, mockDB := newPostgresLoader(t)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mockDB.ExpectSnapshotRead(
		testutil.TableRows{Table: "medicines", Rows: testutil.MockRows(medicineColumns...).
			AddRow(1, "Amoxicillin 500mg", "Antibiotic", "capsule", 100, 730, "12.50").
			AddRow(2, "Insulin Glargine", "Antidiabetic", "vial", 20, 365, "850.00")},
		testutil.TableRows{Table: "consumption_log", Rows: testutil.MockRows(consumptionColumns...).
			AddRow(1, day, 40, 20).
			AddRow(1, day.AddDate(0, 0, 1), 35, 18)},
		testutil.TableRows{Table: "inventory_batches", Rows: testutil.MockRows(batchColumns...).
			AddRow(2, "Insulin Glargine", "Antidiabetic", "INS-001", 12, "vial", day.AddDate(0, 2, 0), day.AddDate(-1, 0, 0), "850.00", "10200.00")},
	)

	tables, err := loader.Load(context.Background())
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)

	require.Len(t, tables.Items, 2)
	assert.Equal(t, int64(1), tables.Items[0].ID)
	assert.Equal(t, "Amoxicillin 500mg", tables.Items[0].Name)
	assert.True(t, decimal.RequireFromString("12.5").Equal(tables.Items[0].UnitCost))

	require.Len(t, tables.Consumption, 2)
	assert.Equal(t, 35, tables.Consumption[1].QuantityDispensed)
	assert.Equal(t, day, tables.Consumption[0].Date)

	require.Len(t, tables.Batches, 1)
	assert.Equal(t, "INS-001", tables.Batches[0].BatchNo)
	assert.Equal(t, "Insulin Glargine", tables.Batches[0].ItemName)
	assert.True(t, decimal.NewFromInt(10200).Equal(tables.Batches[0].TotalValue))
}

func TestPostgresLoader_Load_MissingTable(t *testing.T) {
	loader, mockDB := newPostgresLoader(t)

	mockDB.ExpectSnapshotRead(
		testutil.TableRows{Table: "medicines", Rows: testutil.MockRows(medicineColumns...)},
		testutil.TableRows{Table: "consumption_log", Err: &pq.Error{Code: "42P01", Message: `relation "consumption_log" does not exist`}},
	)

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	mockDB.ExpectationsWereMet(t)

	assert.Contains(t, err.Error(), "load consumption_log")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))
}

func TestPostgresLoader_Load_ScanFailure(t *testing.T) {
	loader, mockDB := newPostgresLoader(t)

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectTableQuery("medicines").WillReturnRows(
		testutil.MockRows(medicineColumns...).AddRow("not-a-number", "X", "", "", 0, 0, "1"),
	)
	mockDB.Mock.ExpectRollback()

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load medicines")
	assert.False(t, apperrors.Is(err, apperrors.ErrUnavailable))
}

func TestPostgresLoader_Source(t *testing.T) {
	loader, _ := newPostgresLoader(t)
	assert.Equal(t, "postgres", loader.Source())
}
