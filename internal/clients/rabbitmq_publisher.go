package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/interfaces"
	"gift-backend/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// amqpChannel is the subset of *amqp.Channel used for publishing
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes gift lifecycle events to a topic exchange
type RabbitMQPublisher struct {
	conn             *amqp.Connection
	channel          amqpChannel
	exchange         string
	routingKeyPrefix string
	logger           *logrus.Logger
}

// NewRabbitMQPublisher dial the broker and declare the exchange
func NewRabbitMQPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not obtain channel for publisher: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	metrics.BrokerConnectionStatus.WithLabelValues(config.BrokerRabbitMQ).Set(1)
	logger.WithField("exchange", cfg.Exchange).Info("✅ RabbitMQ lifecycle publisher ready")

	return &RabbitMQPublisher{
		conn:             conn,
		channel:          ch,
		exchange:         cfg.Exchange,
		routingKeyPrefix: cfg.RoutingKeyPrefix,
		logger:           logger,
	}, nil
}

// PublishLifecycleEvent publish one lifecycle event as a persistent message
func (p *RabbitMQPublisher) PublishLifecycleEvent(ctx context.Context, event *interfaces.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	routingKey := fmt.Sprintf("%s.%s", p.routingKeyPrefix, strings.ToLower(string(event.Status)))
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	p.logger.WithField("routing_key", routingKey).Debug("Published lifecycle event")
	return nil
}

// Close channel and connection
func (p *RabbitMQPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	metrics.BrokerConnectionStatus.WithLabelValues(config.BrokerRabbitMQ).Set(0)
}
