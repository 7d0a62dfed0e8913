package events

import (
	"context"
	"errors"
	"testing"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/messaging"
	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSnapshotReloaded(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := NewWithPublisher(mock, nil, logger.Nop())

	p.PublishSnapshotReloaded(context.Background(), messaging.SnapshotReloadedEvent{Source: "csv", Items: 3})

	events := mock.EventsOfType(messaging.EventSnapshotReloaded)
	require.Len(t, events, 1)
	assert.Equal(t, "csv", events[0].Payload.(messaging.SnapshotReloadedEvent).Source)
}

func TestPublishCriticalAlert(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := NewWithPublisher(mock, nil, logger.Nop())
	loss := decimal.NewFromInt(1000)

	p.PublishCriticalAlert(context.Background(), domain.Alert{
		Kind:           domain.AlertExpiry,
		Severity:       domain.RiskCritical,
		ItemID:         2,
		ItemName:       "Insulin Glargine",
		BatchNo:        "INS-1",
		Message:        "100 units will expire in 20 days",
		Recommendation: "URGENT: Transfer to high-usage facility or return to supplier",
		PotentialLoss:  &loss,
	})
	p.PublishCriticalAlert(context.Background(), domain.Alert{
		Kind:     domain.AlertStockout,
		Severity: domain.RiskCritical,
		ItemID:   1,
		Message:  "Stock will last only 5 days",
	})

	events := mock.EventsOfType(messaging.EventRiskCritical)
	require.Len(t, events, 2)

	expiry := events[0].Payload.(messaging.RiskCriticalEvent)
	assert.Equal(t, KindExpiry, expiry.Kind)
	assert.Equal(t, "INS-1", expiry.BatchNo)
	require.NotNil(t, expiry.PotentialLoss)
	assert.True(t, loss.Equal(*expiry.PotentialLoss))

	stockout := events[1].Payload.(messaging.RiskCriticalEvent)
	assert.Equal(t, KindStockout, stockout.Kind)
	assert.Equal(t, "Stock will last only 5 days", stockout.Message)
	assert.Nil(t, stockout.PotentialLoss)
}

func TestPublish_ErrorsAreSwallowed(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = errors.New("channel closed")
	p := NewWithPublisher(mock, nil, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishSnapshotReloaded(context.Background(), messaging.SnapshotReloadedEvent{})
	})
	mock.AssertNoEventsPublished(t)
}

func TestNilPublisher(t *testing.T) {
	var p *PredictionEventPublisher
	assert.NotPanics(t, func() {
		p.PublishSnapshotReloaded(context.Background(), messaging.SnapshotReloadedEvent{})
		p.PublishCriticalAlert(context.Background(), domain.Alert{})
	})
}
