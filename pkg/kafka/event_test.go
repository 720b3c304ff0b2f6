package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.order.created", Topic("order", "created"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.payment.succeeded", DLQTopic(Topic("payment", "succeeded")))
}

func TestNewEvent_Fields(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
		Total   string `json:"total"`
	}

	event, err := NewEvent("order.created", "ord-1", "order", "marketplace", payload{OrderID: "ord-1", Total: "19.98"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"order_id":"ord-1","total":"19.98"}`, string(event.Data))
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	_, err := NewEvent("x", "a", "t", "s", make(chan int))
	require.Error(t, err)
}

func TestUnmarshalEvent(t *testing.T) {
	event, err := NewEvent("order.paid", "ord-9", "order", "marketplace", map[string]string{"k": "v"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1").WithMetadata("attempt", "2")

	raw, err := event.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Equal(t, "2", got.Metadata["attempt"])

	var data map[string]string
	require.NoError(t, got.UnmarshalData(&data))
	assert.Equal(t, "v", data["k"])
}

func TestUnmarshalEvent_Rejects(t *testing.T) {
	_, err := UnmarshalEvent([]byte("not json"))
	require.Error(t, err)

	_, err = UnmarshalEvent([]byte(`{"event_id":"1"}`))
	require.Error(t, err)
}
