// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/domain"
)

// ReservationCreated is the event type emitted after a reservation is written.
const ReservationCreated = "reservation.created"

// Envelope wraps every event published by the service.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher emits reservation events.
type Publisher interface {
	PublishReservation(ctx context.Context, r domain.Reservation) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic keyed by aggregate id.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
	newID  func() string
}

// NewKafkaWriter builds the producer used by KafkaPublisher.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaPublisher creates a publisher over w.
func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now, newID: uuid.NewString}
}

// PublishReservation emits a reservation.created event keyed by the reservation id.
func (p *KafkaPublisher) PublishReservation(ctx context.Context, r domain.Reservation) error {
	env := Envelope{
		ID:         p.newID(),
		Type:       ReservationCreated,
		OccurredAt: p.now().UTC(),
		Data:       r,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "events: encode reservation event")
	}
	msg := kafka.Message{
		Key:   []byte(r.ID),
		Value: data,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ReservationCreated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "events: publish %s", ReservationCreated)
	}
	log.WithFields(log.Fields{"event_id": env.ID, "reservation_id": r.ID}).Debug("events: published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReservation(context.Context, domain.Reservation) error { return nil }

func (NopPublisher) Close() error { return nil }
