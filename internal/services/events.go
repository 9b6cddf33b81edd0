package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"resuchain/resume-pipeline/internal/models"
)

// StatusPublisher announces persisted changes of a resume record.
type StatusPublisher interface {
	Publish(ctx context.Context, resume *models.ResumeRecord) error
	Close() error
}

type StatusEvent struct {
	ResumeID    string                  `json:"resume_id"`
	OwnerID     string                  `json:"owner_id"`
	Status      models.ProcessingStatus `json:"status"`
	Progress    int                     `json:"progress"`
	ProcessedAt *time.Time              `json:"processed_at,omitempty"`
}

func NewStatusEvent(resume *models.ResumeRecord) StatusEvent {
	return StatusEvent{
		ResumeID:    resume.ID.String(),
		OwnerID:     resume.OwnerID,
		Status:      resume.ProcessingStatus,
		Progress:    resume.VerificationProgress,
		ProcessedAt: resume.ProcessedAt,
	}
}

// RoutingKey is the topic key a status event for resumeID is published under.
func RoutingKey(resumeID string) string {
	return fmt.Sprintf("resume.%s", resumeID)
}

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
}

// NewAMQPPublisher dials RabbitMQ and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string) (StatusPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &amqpPublisher{conn: conn, exchange: exchange}, nil
}

// Publish implements StatusPublisher.
func (p *amqpPublisher) Publish(_ context.Context, resume *models.ResumeRecord) error {
	body, err := json.Marshal(NewStatusEvent(resume))
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	return ch.Publish(
		p.exchange,
		RoutingKey(resume.ID.String()),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close implements StatusPublisher.
func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when no broker is configured.
func NewNoopPublisher() StatusPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *models.ResumeRecord) error { return nil }

func (noopPublisher) Close() error { return nil }
