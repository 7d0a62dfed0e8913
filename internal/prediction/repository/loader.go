// Package repository loads the three input tables of a prediction snapshot
// from the inventory database or from a directory of CSV exports.
package repository

import (
	"context"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

// Loader produces a complete set of input tables.
type Loader interface {
	Load(ctx context.Context) (domain.Tables, error)
	// Source names the backing store ("postgres", "csv") for logs and metrics.
	Source() string
}
