package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"whatsdrip/internal/models"
)

// TagEffectJob asks the worker to apply one tag effect.
//
// Persisted jobs are looked up by EffectID and their outcome is recorded.
// Jobs for effects that could not be stored carry everything needed to
// apply them and are attempted once.
type TagEffectJob struct {
	EffectID   string           `json:"effect_id"`
	CompanyID  string           `json:"company_id"`
	ContactID  string           `json:"contact_id"`
	TemplateID string           `json:"template_id"`
	Action     models.TagAction `json:"action"`
	Tags       []string         `json:"tags"`
	Persisted  bool             `json:"persisted"`
}

// NewTagEffectJob builds the job for an effect
func NewTagEffectJob(effect *models.TagEffect, persisted bool) TagEffectJob {
	return TagEffectJob{
		EffectID:   effect.ID,
		CompanyID:  effect.CompanyID,
		ContactID:  effect.ContactID,
		TemplateID: effect.TemplateID,
		Action:     effect.Action,
		Tags:       effect.Tags,
		Persisted:  persisted,
	}
}

// Publisher publishes tag effect jobs to RabbitMQ
type Publisher struct {
	conn      *Connection
	queueName string
}

// NewPublisher creates a new publisher instance and declares its queue
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		return nil, err
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishTagEffect publishes a persistent job to the queue
func (p *Publisher) PublishTagEffect(ctx context.Context, job TagEffectJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal tag effect job: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.EffectID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish tag effect %s: %w", job.EffectID, err)
	}

	return nil
}
