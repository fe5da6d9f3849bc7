package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// JobHandler processes one tag effect job. A returned error requeues the job.
type JobHandler func(ctx context.Context, job *TagEffectJob) error

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionDrop
)

// Consumer consumes tag effect jobs from RabbitMQ
type Consumer struct {
	conn      *Connection
	queueName string
	handler   JobHandler
	log       zerolog.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewConsumer creates a new consumer instance and declares its queue
func NewConsumer(conn *Connection, queueName string, handler JobHandler, log zerolog.Logger) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		return nil, err
	}

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		log:       log.With().Str("component", "consumer").Str("queue", queueName).Logger(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start starts consuming jobs in a background goroutine
func (c *Consumer) Start() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// one unacknowledged job at a time
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(c.doneChan)
		defer cancel()

		for {
			select {
			case <-c.stopChan:
				c.log.Info().Msg("consumer stopping")
				return
			case d, ok := <-msgs:
				if !ok {
					c.log.Warn().Msg("delivery channel closed")
					return
				}
				c.settle(d, c.process(ctx, d.Body))
			}
		}
	}()

	c.log.Info().Msg("consumer started")
	return nil
}

func (c *Consumer) settle(d amqp.Delivery, action deliveryAction) {
	var err error
	switch action {
	case actionAck:
		err = d.Ack(false)
	case actionRequeue:
		err = d.Nack(false, true)
	case actionDrop:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.log.Error().Err(err).Msg("failed to settle delivery")
	}
}

// Stop stops consuming and waits for the job in flight
func (c *Consumer) Stop() error {
	close(c.stopChan)
	<-c.doneChan

	c.log.Info().Msg("consumer stopped")
	return nil
}

// process decodes and handles one delivery body. Bodies that are not a job
// are dropped rather than requeued forever.
func (c *Consumer) process(ctx context.Context, body []byte) deliveryAction {
	var job TagEffectJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.log.Error().Err(err).Bytes("body", body).Msg("dropping undecodable job")
		return actionDrop
	}

	if err := c.handler(ctx, &job); err != nil {
		c.log.Warn().Err(err).Str("effect_id", job.EffectID).Msg("job failed, requeueing")
		return actionRequeue
	}

	return actionAck
}
