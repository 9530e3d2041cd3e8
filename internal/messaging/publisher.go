// Package messaging provides the RabbitMQ publisher and consumer for
// identity-lifecycle events. Delivery is best-effort: the broker being down
// must never fail the auth flow that triggered the event.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
)

// reconnectBackoff is the fixed delay between reconnect attempts. Retries
// run indefinitely until the broker becomes reachable.
const reconnectBackoff = 5 * time.Second

// ConnState describes the publisher's relationship with the broker.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// brokerChannel is the slice of the AMQP channel API the publisher uses.
// The real implementation wraps a connection plus channel; tests substitute
// a fake.
type brokerChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// dialFunc establishes a channel to the broker with the exchange declared.
type dialFunc func() (brokerChannel, error)

// Publisher owns the process's single broker channel. The channel handle is
// not safe for concurrent use, so every access goes through mu.
type Publisher struct {
	mu     sync.Mutex
	ch     brokerChannel
	state  ConnState
	closed bool

	dial    dialFunc
	backoff time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a publisher that dials url lazily. The first
// connection attempt happens on Connect or on the first publish.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{
		dial:    amqpDialer(url),
		backoff: reconnectBackoff,
		logger:  logger,
	}
}

func newPublisherWithDialer(dial dialFunc, backoff time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{dial: dial, backoff: backoff, logger: logger}
}

// amqpChannel ties the connection and channel lifetimes together.
type amqpChannel struct {
	conn *amqp.Connection
	*amqp.Channel
}

func (c *amqpChannel) Close() error {
	if err := c.Channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

func amqpDialer(url string) dialFunc {
	return func() (brokerChannel, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := ch.ExchangeDeclare(domain.UserEventsExchange, "topic", true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, err
		}
		return &amqpChannel{conn: conn, Channel: ch}, nil
	}
}

// Connect establishes the broker channel. On failure it logs and schedules
// another attempt after the backoff; callers are never blocked on a retry
// loop.
func (p *Publisher) Connect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectLocked()
}

func (p *Publisher) connectLocked() bool {
	if p.closed || p.state == Connected {
		return p.state == Connected
	}

	p.state = Connecting
	ch, err := p.dial()
	if err != nil {
		p.state = Disconnected
		p.logger.Error("broker connection failed", "error", err, "retry_in", p.backoff)
		time.AfterFunc(p.backoff, p.Connect)
		return false
	}

	p.ch = ch
	p.state = Connected
	p.logger.Info("broker connected")
	return true
}

// State reports the current connection state.
func (p *Publisher) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Publish sends an event as a persistent message to a topic exchange. A call
// made while disconnected attempts one inline reconnect; if that fails, or
// the broker rejects the message, the event is dropped and the typed result
// says so. Publish never returns an error.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, event domain.IdentityEvent) domain.PublishResult {
	body, err := json.Marshal(event)
	if err != nil {
		return domain.Dropped("encode event: " + err.Error())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return domain.Dropped("publisher closed")
	}
	if p.state != Connected && !p.connectLocked() {
		return domain.Dropped("broker unreachable")
	}

	err = p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.dropChannelLocked()
		return domain.Dropped("publish failed: " + err.Error())
	}

	return domain.Delivered()
}

// dropChannelLocked discards a channel that just errored and schedules a
// reconnect. Caller holds mu.
func (p *Publisher) dropChannelLocked() {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	p.state = Disconnected
	if !p.closed {
		time.AfterFunc(p.backoff, p.Connect)
	}
}

// Consume binds a durable queue to the user.events exchange under routingKey
// and runs handler for each delivered event. Handler success acknowledges
// the message; handler failure (or an undecodable body) negatively
// acknowledges WITHOUT requeue, so a poison message is dropped instead of
// looping forever.
func (p *Publisher) Consume(queue, routingKey string, handler func(domain.IdentityEvent) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errConsumerClosed
	}
	if p.state != Connected && !p.connectLocked() {
		p.mu.Unlock()
		return errBrokerUnreachable
	}

	ch := p.ch
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.dropChannelLocked()
		p.mu.Unlock()
		return err
	}
	if err := ch.QueueBind(queue, routingKey, domain.UserEventsExchange, false, nil); err != nil {
		p.dropChannelLocked()
		p.mu.Unlock()
		return err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		p.dropChannelLocked()
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	go p.consumeLoop(queue, deliveries, handler)
	return nil
}

func (p *Publisher) consumeLoop(queue string, deliveries <-chan amqp.Delivery, handler func(domain.IdentityEvent) error) {
	for d := range deliveries {
		var event domain.IdentityEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			p.logger.Error("dropping undecodable message", "queue", queue, "error", err)
			d.Nack(false, false)
			continue
		}
		if err := handler(event); err != nil {
			p.logger.Error("handler failed, dropping message",
				"queue", queue, "event_id", event.EventID, "error", err)
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
}

// Close tears down the broker channel and stops reconnect scheduling.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.state = Disconnected
	if p.ch != nil {
		err := p.ch.Close()
		p.ch = nil
		return err
	}
	return nil
}
