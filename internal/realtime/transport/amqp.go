package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cafe-pos/internal/config"
	"cafe-pos/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport bridges topics over RabbitMQ for deployments where counters
// run on more than one host. Each topic maps to a durable fanout exchange;
// every handle consumes from its own exclusive queue and drops envelopes
// whose origin is its own station.
type AMQPTransport struct {
	conn  *amqp.Connection
	mylog logger.Logger

	mu     sync.Mutex
	closed bool
}

func ConnectAMQP(cfg *config.BrokerConfig, mylog logger.Logger) (*AMQPTransport, error) {
	connStr := fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	mylog.Action("amqp_connected").Info("Connected to RabbitMQ")
	return &AMQPTransport{conn: conn, mylog: mylog}, nil
}

func (t *AMQPTransport) Open(topic, station string) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		topic,    // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("exchange declare %q: %w", topic, err)
	}

	queue, err := ch.QueueDeclare(
		"",    // name, server-generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", topic, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	return &amqpHandle{
		ch:      ch,
		topic:   topic,
		station: station,
		queue:   queue.Name,
		mylog:   t.mylog,
	}, nil
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

type amqpHandle struct {
	ch      *amqp.Channel
	topic   string
	station string
	queue   string
	mylog   logger.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
}

func (h *amqpHandle) Publish(env Envelope) error {
	if env.Origin == "" {
		env.Origin = h.station
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.ch.PublishWithContext(ctx,
		h.topic, // exchange
		"",      // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

func (h *amqpHandle) Subscribe(handler func(Envelope)) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	deliveries, err := h.ch.Consume(
		h.queue, // queue
		"",      // consumer tag, server-generated
		true,    // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancels = append(h.cancels, cancel)
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal(delivery.Body, &env); err != nil {
					h.mylog.Action("amqp_decode_failed").Error("Dropping malformed envelope", err)
					continue
				}
				if env.Origin == h.station {
					continue
				}
				h.safeCall(handler, env)
			}
		}
	}()

	return cancel, nil
}

func (h *amqpHandle) safeCall(handler func(Envelope), env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.mylog.Action("amqp_handler_panic").Error(
				"Subscriber handler panicked", fmt.Errorf("%v", r))
		}
	}()
	handler(env)
}

func (h *amqpHandle) Close() error {
	h.mu.Lock()
	for _, cancel := range h.cancels {
		cancel()
	}
	h.cancels = nil
	h.mu.Unlock()
	return h.ch.Close()
}
