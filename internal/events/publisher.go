package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Event kinds published on the reservation lifecycle.
const (
	KindSlotPublished        = "slot.published"
	KindSlotWithdrawn        = "slot.withdrawn"
	KindReservationConfirmed = "reservation.confirmed"
	KindReservationCancelled = "reservation.cancelled"
	KindReservationFulfilled = "reservation.fulfilled"
	KindReservationExpired   = "reservation.expired"
)

// Event is the payload handed to the excluded notification layer.
type Event struct {
	Kind          string    `json:"kind"`
	OccurredAt    time.Time `json:"occurred_at"`
	ServiceID     string    `json:"service_id,omitempty"`
	SlotID        string    `json:"slot_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	ClientID      string    `json:"client_id,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Units         int       `json:"units,omitempty"`
}

// Publisher emits lifecycle events. Implementations must tolerate being
// called after a transaction commits; a failed publish never rolls back the
// booking decision.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events; used when AMQP is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// AMQPPublisher emits events to a durable topic exchange, routing key equal
// to the event kind.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "events").Logger(),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Kind, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.OccurredAt,
		Body:        body,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("kind", event.Kind).Msg("publish event")
		return err
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
