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

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const giftEventStream = "GIFT_EVENTS"

// jetStreamPublisher is the subset of nats.JetStreamContext used for publishing
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient publishes gift lifecycle events to JetStream
type NATSClient struct {
	conn          *nats.Conn
	js            jetStreamPublisher
	subjectPrefix string
	logger        *logrus.Logger
}

// NewNATSClient connect to NATS and make sure the event stream exists
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := time.Duration(cfg.Timeout) * time.Second
	logger.WithFields(logrus.Fields{
		"url":     cfg.URL,
		"timeout": connectTimeout,
	}).Info("🔌 Connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS connection lost")
			metrics.BrokerConnectionStatus.WithLabelValues(config.BrokerNATS).Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection restored")
			metrics.BrokerConnectionStatus.WithLabelValues(config.BrokerNATS).Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js, cfg.SubjectPrefix); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.BrokerConnectionStatus.WithLabelValues(config.BrokerNATS).Set(1)
	logger.Info("✅ NATS lifecycle publisher ready")

	return &NATSClient{
		conn:          conn,
		js:            js,
		subjectPrefix: cfg.SubjectPrefix,
		logger:        logger,
	}, nil
}

// ensureStream create the lifecycle stream if it does not exist yet
func ensureStream(js nats.JetStreamContext, prefix string) error {
	if _, err := js.StreamInfo(giftEventStream); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     giftEventStream,
		Subjects: []string{prefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", giftEventStream, err)
	}
	return nil
}

// LifecycleSubject builds "<prefix>.<status>.<commitment hash>"
func LifecycleSubject(prefix string, event *interfaces.LifecycleEvent) string {
	return fmt.Sprintf("%s.%s.%s", prefix, strings.ToLower(string(event.Status)), event.CommitmentHash)
}

// PublishLifecycleEvent publish one lifecycle event
func (c *NATSClient) PublishLifecycleEvent(ctx context.Context, event *interfaces.LifecycleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	subject := LifecycleSubject(c.subjectPrefix, event)
	if _, err := c.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.EventID)); err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	c.logger.WithField("subject", subject).Debug("Published lifecycle event")
	return nil
}

// Close connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
