package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Inventory events, consumed to keep the prediction snapshot fresh
	EventStockAdjusted  = "inventory.stock.adjusted"
	EventBatchReceived  = "inventory.batch.received"
	EventBatchExpiring  = "inventory.batch.expiring"
	EventAlertGenerated = "inventory.alert.generated"

	// Prediction events
	EventSnapshotReloaded = "prediction.snapshot.reloaded"
	EventRiskCritical     = "prediction.risk.critical"
)

// Exchange names
const (
	ExchangeInventoryEvents  = "inventory.events"
	ExchangePredictionEvents = "prediction.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Inventory Events

// StockAdjustedEvent is published when stock is adjusted
type StockAdjustedEvent struct {
	ItemID      string `json:"item_id"`
	BatchID     string `json:"batch_id"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason"`
}

// BatchReceivedEvent is published when a new batch is booked into stock
type BatchReceivedEvent struct {
	ItemID     string    `json:"item_id"`
	BatchID    string    `json:"batch_id"`
	BatchNo    string    `json:"batch_no"`
	Quantity   int       `json:"quantity"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// BatchExpiringEvent is published when a batch is nearing expiry
type BatchExpiringEvent struct {
	ItemID     string    `json:"item_id"`
	BatchID    string    `json:"batch_id"`
	ItemName   string    `json:"item_name"`
	BatchNo    string    `json:"batch_no"`
	ExpiryDate time.Time `json:"expiry_date"`
	DaysUntil  int       `json:"days_until"`
	Quantity   int       `json:"quantity"`
}

// Prediction Events

// SnapshotReloadedEvent is published after the prediction snapshot has been
// rebuilt from its data source.
type SnapshotReloadedEvent struct {
	Source                string    `json:"source"`
	Items                 int       `json:"items"`
	Batches               int       `json:"batches"`
	ConsumptionRecords    int       `json:"consumption_records"`
	LatestConsumptionDate time.Time `json:"latest_consumption_date"`
	HealthScore           int       `json:"health_score"`
	DurationMS            int64     `json:"duration_ms"`
}

// RiskCriticalEvent is published for every CRITICAL expiry or stockout risk
// found in a freshly loaded snapshot.
type RiskCriticalEvent struct {
	Kind           string           `json:"kind"`
	ItemID         int64            `json:"medicine_id"`
	ItemName       string           `json:"medicine_name"`
	BatchNo        string           `json:"batch_no,omitempty"`
	Message        string           `json:"message"`
	Recommendation string           `json:"recommendation"`
	PotentialLoss  *decimal.Decimal `json:"potential_loss,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
