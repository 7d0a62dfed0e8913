package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	data := SnapshotReloadedEvent{
		Source:             "csv",
		Items:              3,
		Batches:            7,
		ConsumptionRecords: 540,
		HealthScore:        82,
	}

	event, err := NewEvent(EventSnapshotReloaded, "prediction-service", "corr-1", data)
	require.NoError(t, err)

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err, "event id should be a uuid")
	assert.Equal(t, EventSnapshotReloaded, event.Type)
	assert.Equal(t, "prediction-service", event.Source)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)

	var decoded SnapshotReloadedEvent
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent(EventRiskCritical, "prediction-service", "", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestGenerateEventID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateEventID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestCorrelationID(t *testing.T) {
	assert.Equal(t, "", getCorrelationID(context.Background()))
	assert.Equal(t, "abc", getCorrelationID(WithCorrelationID(context.Background(), "abc")))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, getRetryCount(amqp.Delivery{}))
	assert.Equal(t, 2, getRetryCount(amqp.Delivery{
		Headers: amqp.Table{
			"x-death": []interface{}{amqp.Table{"count": int64(2)}},
		},
	}))
}
