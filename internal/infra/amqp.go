package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP holds the broker connection and the publishing channel.
type AMQP struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewAMQP dials the broker and declares a durable topic exchange for
// notifications.
func NewAMQP(url, exchange, connectionName string) (*AMQP, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	return &AMQP{Conn: conn, Channel: ch}, nil
}

// Close releases the channel and the connection.
func (a *AMQP) Close() error {
	if a == nil {
		return nil
	}
	chErr := a.Channel.Close()
	if err := a.Conn.Close(); err != nil {
		return err
	}
	return chErr
}
