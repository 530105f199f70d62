package broker

import (
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker wraps a RabbitMQ connection and channel bound to one exchange.
// The reservation core uses two of these: a direct exchange feeding the
// competing-consumer request queue, and a fanout exchange carrying
// state-change events to every broadcaster instance.
type Broker struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	url      string
}

func NewBroker(rabbitMQURL, exchange, exchangeType string) (*Broker, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		log.Printf("Failed to connect to RabbitMQ: %v", err)
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("Failed to open channel: %v", err)
		conn.Close()
		return nil, err
	}

	if exchange != "" {
		err = ch.ExchangeDeclare(
			exchange,
			exchangeType,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			log.Printf("Failed to declare exchange %s: %v", exchange, err)
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	return &Broker{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		url:      rabbitMQURL,
	}, nil
}

func (b *Broker) ensureConnection() error {
	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			log.Printf("Failed to reconnect to RabbitMQ: %v", err)
			return err
		}
		b.conn = conn

		b.channel, err = conn.Channel()
		if err != nil {
			log.Printf("Failed to open channel on reconnect: %v", err)
			conn.Close()
			return err
		}
	}
	return nil
}

// Publish marshals the message to JSON and sends it to the broker's exchange
// with the given routing key. On a fanout exchange the key is ignored by the
// broker and may be empty.
func (b *Broker) Publish(message interface{}, key string) error {
	if err := b.ensureConnection(); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return err
	}

	err = b.channel.Publish(
		b.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		log.Printf("Failed to publish message: %v", err)
		return err
	}

	return nil
}

// DeclareAndBindQueue declares a durable queue shared by competing consumers
// and binds it to the exchange under the routing key.
func (b *Broker) DeclareAndBindQueue(queueName, routingKey string) error {
	if err := b.ensureConnection(); err != nil {
		return err
	}

	_, err := b.channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return b.channel.QueueBind(
		queueName,
		routingKey,
		b.exchange,
		false,
		nil,
	)
}

// DeclareEphemeralQueue declares an exclusive auto-delete queue with a
// broker-generated name and binds it to the exchange. Each broadcaster
// instance gets its own copy of every event this way; the queue disappears
// with the connection.
func (b *Broker) DeclareEphemeralQueue() (string, error) {
	if err := b.ensureConnection(); err != nil {
		return "", err
	}

	q, err := b.channel.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return "", err
	}

	err = b.channel.QueueBind(
		q.Name,
		"",
		b.exchange,
		false,
		nil,
	)
	if err != nil {
		return "", err
	}

	return q.Name, nil
}

// Consume starts delivering messages from the queue. Callers that need
// ack-on-success semantics pass autoAck=false and Ack/Reject each delivery
// themselves.
func (b *Broker) Consume(queueName string, autoAck bool) (<-chan amqp.Delivery, error) {
	if err := b.ensureConnection(); err != nil {
		return nil, err
	}

	msgs, err := b.channel.Consume(
		queueName,
		"",
		autoAck,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Printf("Failed to start consuming from %s: %v", queueName, err)
		return nil, err
	}

	return msgs, nil
}

func (b *Broker) Close() error {
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			log.Printf("Failed to close channel: %v", err)
			return err
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
			return err
		}
	}
	return nil
}

// SetQoS sets the prefetch count for the channel.
func (b *Broker) SetQoS(prefetchCount int, prefetchSize int, global bool) error {
	if err := b.ensureConnection(); err != nil {
		return err
	}
	return b.channel.Qos(prefetchCount, prefetchSize, global)
}
