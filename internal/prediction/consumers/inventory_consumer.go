package consumers

import (
	"context"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/messaging"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
)

// DefaultSettleDelay is how long the trigger waits after the first inventory
// event before reloading, so a burst of stock movements costs one reload.
const DefaultSettleDelay = 2 * time.Second

// ReloadTrigger coalesces reload requests. At most one request is pending at
// any time; requests arriving while a reload is waiting are folded into it.
type ReloadTrigger struct {
	reloader service.Reloader
	delay    time.Duration
	pending  chan struct{}
	logger   *logger.Logger
}

// NewReloadTrigger creates a new reload trigger
func NewReloadTrigger(reloader service.Reloader, delay time.Duration, log *logger.Logger) *ReloadTrigger {
	return &ReloadTrigger{
		reloader: reloader,
		delay:    delay,
		pending:  make(chan struct{}, 1),
		logger:   log.WithComponent("reload-trigger"),
	}
}

// Request asks for a reload without blocking.
func (t *ReloadTrigger) Request() {
	select {
	case t.pending <- struct{}{}:
	default:
	}
}

// Run serves reload requests until ctx is done.
func (t *ReloadTrigger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.pending:
		}

		if t.delay > 0 {
			timer := time.NewTimer(t.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		// Requests that arrived during the delay are covered by this reload.
		select {
		case <-t.pending:
		default:
		}

		status, err := t.reloader.Reload(ctx)
		if err != nil {
			t.logger.Error().Err(err).Msg("event-driven reload failed")
			continue
		}
		t.logger.Info().
			Uint64("version", status.Version).
			Int("batches", status.Batches).
			Msg("snapshot reloaded after inventory change")
	}
}

// InventoryEventHandler handles inventory events (testable without RabbitMQ)
type InventoryEventHandler struct {
	trigger *ReloadTrigger
	metrics *monitoring.MetricsCollector
	logger  *logger.Logger
}

// NewInventoryEventHandler creates a new handler
func NewInventoryEventHandler(trigger *ReloadTrigger, metrics *monitoring.MetricsCollector, log *logger.Logger) *InventoryEventHandler {
	return &InventoryEventHandler{
		trigger: trigger,
		metrics: metrics,
		logger:  log,
	}
}

// HandleEvent processes an inventory event and schedules a snapshot reload
func (h *InventoryEventHandler) HandleEvent(ctx context.Context, event *messaging.Event) error {
	switch event.Type {
	case messaging.EventStockAdjusted:
		return h.handleStockAdjusted(ctx, event)
	case messaging.EventBatchReceived:
		return h.handleBatchReceived(ctx, event)
	case messaging.EventBatchExpiring:
		return h.handleBatchExpiring(ctx, event)
	case messaging.EventAlertGenerated:
		return h.handleAlertGenerated(ctx, event)
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("unknown event type received")
		return nil
	}
}

func (h *InventoryEventHandler) handleStockAdjusted(_ context.Context, event *messaging.Event) error {
	var data messaging.StockAdjustedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal StockAdjustedEvent")
		h.metrics.RecordEventConsumed(event.Type, err)
		return messaging.Permanent(err)
	}

	h.logger.Debug().
		Str("item_id", data.ItemID).
		Str("batch_id", data.BatchID).
		Int("adjustment", data.Adjustment).
		Msg("stock adjusted")

	return h.schedule(event)
}

func (h *InventoryEventHandler) handleBatchReceived(_ context.Context, event *messaging.Event) error {
	var data messaging.BatchReceivedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal BatchReceivedEvent")
		h.metrics.RecordEventConsumed(event.Type, err)
		return messaging.Permanent(err)
	}

	h.logger.Debug().
		Str("item_id", data.ItemID).
		Str("batch_no", data.BatchNo).
		Int("quantity", data.Quantity).
		Msg("batch received")

	return h.schedule(event)
}

func (h *InventoryEventHandler) handleBatchExpiring(_ context.Context, event *messaging.Event) error {
	var data messaging.BatchExpiringEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal BatchExpiringEvent")
		h.metrics.RecordEventConsumed(event.Type, err)
		return messaging.Permanent(err)
	}

	h.logger.Debug().
		Str("item_id", data.ItemID).
		Str("batch_no", data.BatchNo).
		Int("days_until", data.DaysUntil).
		Msg("batch expiring")

	return h.schedule(event)
}

// handleAlertGenerated carries no payload we depend on.
func (h *InventoryEventHandler) handleAlertGenerated(_ context.Context, event *messaging.Event) error {
	return h.schedule(event)
}

func (h *InventoryEventHandler) schedule(event *messaging.Event) error {
	h.trigger.Request()
	h.metrics.RecordEventConsumed(event.Type, nil)
	return nil
}

// InventoryEventConsumer consumes inventory events to keep the prediction
// snapshot fresh
type InventoryEventConsumer struct {
	consumer *messaging.Consumer
	handler  *InventoryEventHandler
	trigger  *ReloadTrigger
	logger   *logger.Logger
}

// NewInventoryEventConsumer creates a new inventory event consumer
func NewInventoryEventConsumer(
	rmq *messaging.RabbitMQ,
	cfg config.RabbitMQConfig,
	reloader service.Reloader,
	metrics *monitoring.MetricsCollector,
	log *logger.Logger,
) (*InventoryEventConsumer, error) {
	// Rejected inventory events land in dlq.prediction-service
	if err := rmq.DeclareDeadLetterQueue("prediction-service"); err != nil {
		return nil, err
	}

	consumer, err := messaging.NewConsumer(rmq, cfg.InventoryQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.#"); err != nil {
		return nil, err
	}

	trigger := NewReloadTrigger(reloader, DefaultSettleDelay, log)
	handler := NewInventoryEventHandler(trigger, metrics, log)

	consumer.RegisterHandler(messaging.EventStockAdjusted, handler.handleStockAdjusted)
	consumer.RegisterHandler(messaging.EventBatchReceived, handler.handleBatchReceived)
	consumer.RegisterHandler(messaging.EventBatchExpiring, handler.handleBatchExpiring)
	consumer.RegisterHandler(messaging.EventAlertGenerated, handler.handleAlertGenerated)

	return &InventoryEventConsumer{
		consumer: consumer,
		handler:  handler,
		trigger:  trigger,
		logger:   log,
	}, nil
}

// Start starts consuming messages and serving reload requests. It returns
// once the consumer is running.
func (c *InventoryEventConsumer) Start(ctx context.Context) error {
	go c.trigger.Run(ctx)
	return c.consumer.Start(ctx)
}
