package clients

import (
	"context"
	"encoding/json"
	"testing"

	"gift-backend/internal/interfaces"
	"gift-backend/internal/models"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type fakeJetStream struct {
	subject string
	data    []byte
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	return &nats.PubAck{Stream: giftEventStream, Sequence: 1}, nil
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func lifecycleEvent() *interfaces.LifecycleEvent {
	return &interfaces.LifecycleEvent{
		EventID:        "evt-1",
		CommitmentHash: "0xabc",
		Status:         models.GiftStatusDelivered,
		ClaimURL:       "https://gift.example/claim/gift1.xyz",
		Timestamp:      1700000000,
	}
}

func TestNATSClientPublishLifecycleEvent(t *testing.T) {
	js := &fakeJetStream{}
	client := &NATSClient{js: js, subjectPrefix: "gift", logger: testLogger()}

	require.NoError(t, client.PublishLifecycleEvent(context.Background(), lifecycleEvent()))
	require.Equal(t, "gift.delivered.0xabc", js.subject)

	var decoded interfaces.LifecycleEvent
	require.NoError(t, json.Unmarshal(js.data, &decoded))
	require.Equal(t, "https://gift.example/claim/gift1.xyz", decoded.ClaimURL)
}

func TestRabbitMQPublisherPublishLifecycleEvent(t *testing.T) {
	ch := &fakeChannel{}
	publisher := &RabbitMQPublisher{channel: ch, exchange: "gift.events", routingKeyPrefix: "gift", logger: testLogger()}

	require.NoError(t, publisher.PublishLifecycleEvent(context.Background(), lifecycleEvent()))
	require.Equal(t, "gift.events", ch.exchange)
	require.Equal(t, "gift.delivered", ch.key)
	require.Equal(t, "evt-1", ch.msg.MessageId)
	require.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
}
