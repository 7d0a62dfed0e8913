package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/database"
	"github.com/medflow/medpredict-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite with the
// inventory schema applied.
//
// Usage:
//
//	func TestPostgresLoader_Integration(t *testing.T) {
//	    testutil.SkipIfShort(t)
//	    ctx := testutil.DefaultTestContext(t)
//	    suite, err := testutil.NewIntegrationSuite(ctx)
//	    require.NoError(t, err)
//	    suite.Seed(t, ctx, tables)
//	    // ... load through suite.DB
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := container.ApplyInventorySchema(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Seed inserts the given tables and truncates them again when the test ends.
func (s *IntegrationSuite) Seed(t *testing.T, ctx context.Context, tables domain.Tables) {
	t.Helper()

	if err := s.insert(ctx, tables); err != nil {
		t.Fatalf("failed to seed inventory tables: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Truncate(context.Background()); err != nil {
			t.Logf("warning: failed to truncate inventory tables: %v", err)
		}
	})
}

func (s *IntegrationSuite) insert(ctx context.Context, tables domain.Tables) error {
	tx, err := s.RawDB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range tables.Items {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO medicines (medicine_id, name, category, unit, reorder_level, shelf_life_days, unit_cost)
			VALUES (:medicine_id, :name, :category, :unit, :reorder_level, :shelf_life_days, :unit_cost)`, it); err != nil {
			return fmt.Errorf("insert medicine %d: %w", it.ID, err)
		}
	}

	for _, rec := range tables.Consumption {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO consumption_log (medicine_id, date, quantity_dispensed, patient_count)
			VALUES (:medicine_id, :date, :quantity_dispensed, :patient_count)`, rec); err != nil {
			return fmt.Errorf("insert consumption for %d: %w", rec.ItemID, err)
		}
	}

	for _, b := range tables.Batches {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO inventory_batches (medicine_id, batch_no, quantity, unit, expiry_date, received_date, unit_cost, total_value)
			VALUES (:medicine_id, :batch_no, :quantity, :unit, :expiry_date, :received_date, :unit_cost, :total_value)`, b); err != nil {
			return fmt.Errorf("insert batch %s: %w", b.BatchNo, err)
		}
	}

	return tx.Commit()
}

// Truncate empties the inventory tables.
func (s *IntegrationSuite) Truncate(ctx context.Context) error {
	_, err := s.RawDB.ExecContext(ctx, `TRUNCATE inventory_batches, consumption_log, medicines RESTART IDENTITY`)
	return err
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
