package event

import (
	"collection-ledger/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publisherAppID = "collection-ledger"

type RabbitMQEventPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger
}

func DialRabbitMQ(cfg config.RabbitMQConfig) (*amqp.Connection, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	// Durable topic exchange shared by the collection and ledger event streams.
	if err := tempCh.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Declared ledger event exchange", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error {
	return p.publish(ctx, RoutingKeyPaymentRecorded, event)
}

func (p *RabbitMQEventPublisher) PublishTargetClosed(ctx context.Context, event TargetClosedEvent) error {
	return p.publish(ctx, RoutingKeyTargetClosed, event)
}

func (p *RabbitMQEventPublisher) PublishAccrualCompleted(ctx context.Context, event AccrualCompletedEvent) error {
	return p.publish(ctx, RoutingKeyAccrualCompleted, event)
}

func (p *RabbitMQEventPublisher) PublishLedgerTransfer(ctx context.Context, event LedgerTransferEvent) error {
	return p.publish(ctx, RoutingKeyLedgerTransfer, event)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := newPublishing(routingKey, payload, uuid.NewString(), time.Now())
	if err != nil {
		p.logger.ErrorContext(ctx, "Dropping unencodable event", "routingKey", routingKey, "error", err)
		return err
	}
	log := p.logger.With("routingKey", routingKey, "messageId", msg.MessageId)

	channel, err := p.conn.Channel()
	if err != nil {
		log.ErrorContext(ctx, "Failed to open RabbitMQ channel", "error", err)
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	if err := channel.PublishWithContext(ctx, p.exchangeName, routingKey, false, false, msg); err != nil {
		log.ErrorContext(ctx, "Failed to publish ledger event", "error", err)
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	log.DebugContext(ctx, "Published ledger event", "bodySize", len(msg.Body))
	return nil
}

// newPublishing builds a persistent JSON message. The message id lets
// consumers drop redeliveries of the same receipt or transfer.
func newPublishing(routingKey string, payload any, messageID string, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         routingKey,
		Timestamp:    now.UTC(),
		Body:         body,
		AppId:        publisherAppID,
	}, nil
}
