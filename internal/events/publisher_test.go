package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_PublishReservation(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }
	p.newID = func() string { return "evt-1" }

	r := domain.Reservation{
		ID:              "recR1",
		ProductRecordID: "recP1",
		ProductName:     "Flannel",
		QuantityMeters:  decimal.RequireFromString("2.5"),
		CustomerName:    "Omar",
	}
	require.NoError(t, p.PublishReservation(context.Background(), r))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "recR1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, ReservationCreated, string(msg.Headers[0].Value))

	var got struct {
		ID         string             `json:"id"`
		Type       string             `json:"type"`
		OccurredAt time.Time          `json:"occurred_at"`
		Data       domain.Reservation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, ReservationCreated, got.Type)
	assert.Equal(t, "recP1", got.Data.ProductRecordID)
	assert.True(t, got.Data.QuantityMeters.Equal(decimal.RequireFromString("2.5")))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w)

	err := p.PublishReservation(context.Background(), domain.Reservation{ID: "recR1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "fabrics.reservations")
	assert.Equal(t, "fabrics.reservations", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishReservation(context.Background(), domain.Reservation{}))
	assert.NoError(t, p.Close())
}
