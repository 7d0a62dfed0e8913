package events

import (
	"context"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/messaging"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
)

// Risk kinds carried by RiskCriticalEvent.
const (
	KindExpiry   = "expiry"
	KindStockout = "stockout"
)

// EventPublisher is satisfied by *messaging.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// PredictionEventPublisher publishes prediction-related events
type PredictionEventPublisher struct {
	publisher EventPublisher
	metrics   *monitoring.MetricsCollector
	logger    *logger.Logger
}

// NewPredictionEventPublisher creates a new prediction event publisher
func NewPredictionEventPublisher(rmq *messaging.RabbitMQ, metrics *monitoring.MetricsCollector, log *logger.Logger) (*PredictionEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePredictionEvents, "prediction-service", log)
	if err != nil {
		return nil, err
	}

	return NewWithPublisher(publisher, metrics, log), nil
}

// NewWithPublisher wraps an existing publisher
func NewWithPublisher(publisher EventPublisher, metrics *monitoring.MetricsCollector, log *logger.Logger) *PredictionEventPublisher {
	return &PredictionEventPublisher{
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
	}
}

// PublishSnapshotReloaded publishes a snapshot reloaded event
func (p *PredictionEventPublisher) PublishSnapshotReloaded(ctx context.Context, data messaging.SnapshotReloadedEvent) {
	if p == nil {
		return
	}

	err := p.publisher.Publish(ctx, messaging.EventSnapshotReloaded, data)
	p.metrics.RecordEventPublished(messaging.EventSnapshotReloaded, err)
	if err != nil {
		p.logger.Error().Err(err).Str("source", data.Source).Msg("failed to publish snapshot reloaded event")
	}
}

// PublishCriticalAlert publishes a critical risk event for one alert
func (p *PredictionEventPublisher) PublishCriticalAlert(ctx context.Context, alert domain.Alert) {
	if p == nil {
		return
	}

	kind := KindStockout
	if alert.Kind == domain.AlertExpiry {
		kind = KindExpiry
	}

	p.publishCritical(ctx, messaging.RiskCriticalEvent{
		Kind:           kind,
		ItemID:         alert.ItemID,
		ItemName:       alert.ItemName,
		BatchNo:        alert.BatchNo,
		Message:        alert.Message,
		Recommendation: alert.Recommendation,
		PotentialLoss:  alert.PotentialLoss,
	})
}

func (p *PredictionEventPublisher) publishCritical(ctx context.Context, data messaging.RiskCriticalEvent) {
	err := p.publisher.Publish(ctx, messaging.EventRiskCritical, data)
	p.metrics.RecordEventPublished(messaging.EventRiskCritical, err)
	if err != nil {
		p.logger.Error().Err(err).
			Str("kind", data.Kind).
			Int64("medicine_id", data.ItemID).
			Msg("failed to publish critical risk event")
	}
}
