package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testProducerConfig() ProducerConfig {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	cfg.Breaker.Name = "test-" + time.Now().Format("150405.000000000")
	cfg.Breaker.ConsecutiveFailures = 2
	cfg.Breaker.Timeout = time.Minute
	return cfg
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, testProducerConfig(), discardLogger())

	event, err := NewEvent("order.created", "ord-1", "order", "marketplace", map[string]int{"n": 1})
	require.NoError(t, err)
	event.WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(context.Background(), Topic("order", "created"), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.order.created", msg.Topic)
	assert.Equal(t, []byte("ord-1"), msg.Key)

	c := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "order.created", c.Get("event_type"))
	assert.Equal(t, "corr-7", c.Get("correlation_id"))
}

func TestProducer_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, testProducerConfig(), discardLogger())
	event, err := NewEvent("order.paid", "ord-1", "order", "marketplace", nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := p.Publish(context.Background(), "t", event)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, p.BreakerState())

	w.err = nil
	err = p.Publish(context.Background(), "t", event)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Empty(t, w.msgs)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	require.Error(t, PingBrokers(context.Background(), nil))
}
