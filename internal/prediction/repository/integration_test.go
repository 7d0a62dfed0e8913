package repository

import (
	"testing"
	"time"

	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLoader_Integration(t *testing.T) {
	testutil.SkipIfShort(t)

	ctx := testutil.DefaultTestContext(t)
	suite, err := testutil.NewIntegrationSuite(ctx)
	require.NoError(t, err)

	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	seeded := suite.Fixtures.SampleTables(asOf)
	suite.Seed(t, ctx, seeded)

	tables, err := NewPostgresLoader(suite.DB).Load(ctx)
	require.NoError(t, err)

	assert.Len(t, tables.Items, len(seeded.Items))
	assert.Len(t, tables.Consumption, len(seeded.Consumption))
	require.Len(t, tables.Batches, len(seeded.Batches))

	// ordered by expiry date, names joined from the item master
	first := tables.Batches[0]
	assert.Equal(t, "Insulin Glargine", first.ItemName)
	assert.True(t, first.ExpiryDate.Equal(asOf.AddDate(0, 0, 20)))
	assert.True(t, seeded.Batches[1].TotalValue.Equal(first.TotalValue))
}
