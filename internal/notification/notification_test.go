package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) Send(context.Context, Message) error { return f.err }

func sampleMessage() Message {
	return Message{
		Kind:        KindTransferReceived,
		Destination: "user-2",
		Body:        "You received 60.00 USD",
		Reference:   "TRNX-01HZX_CREDIT",
		WalletID:    "wallet-b",
		Amount:      "60.00",
		OccurredAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAMQPNotifierPublishesPersistentJSON(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewAMQPNotifier(pub, "wallet.events")

	require.NoError(t, n.Send(context.Background(), sampleMessage()))

	assert.Equal(t, "wallet.events", pub.exchange)
	assert.Equal(t, KindTransferReceived, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "application/json", pub.msg.ContentType)

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, sampleMessage(), decoded)
}

func TestAMQPNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	n := NewAMQPNotifier(&recordingPublisher{err: boom}, "wallet.events")

	err := n.Send(context.Background(), sampleMessage())
	assert.ErrorIs(t, err, boom)
}

func TestLoggerNotifierWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLoggerNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), sampleMessage()))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, KindTransferReceived, fields["kind"])
	assert.Equal(t, "user-2", fields["destination"])
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	first := errors.New("first")
	pub := &recordingPublisher{}
	f := Fanout{failingNotifier{err: first}, nil, NewAMQPNotifier(pub, "x")}

	err := f.Send(context.Background(), sampleMessage())
	assert.ErrorIs(t, err, first)
	assert.Equal(t, KindTransferReceived, pub.key, "later notifiers still receive the message")
}
