package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Consumer interface {
	Start() error
	Close() error
}

// ClassificationHandler applies an AI classification result to an attempt.
// A not-found attempt must be reported through a nil error so the message is
// not requeued forever; only infrastructure failures should return an error.
type ClassificationHandler interface {
	HandleAiClassification(ctx context.Context, attemptID, prediction string, confidence float64) error
}

type EventConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel

	queueName string
	handler   ClassificationHandler
	enabled   bool
}

const (
	aiExchangeName           = "ai.events"
	classificationQueueName  = "test.attempts.classified"
	classificationRoutingKey = "ai.classification.completed"
)

func NewEventConsumer(rabbitURI string, handler ClassificationHandler) (*EventConsumer, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event consumption is disabled")
		return &EventConsumer{
			enabled: false,
		}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		aiExchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		classificationQueueName, // name
		true,                    // durable
		false,                   // delete when unused
		false,                   // exclusive
		false,                   // no-wait
		nil,                     // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		queue.Name,               // queue name
		classificationRoutingKey, // routing key
		aiExchangeName,           // exchange
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &EventConsumer{
		conn:      conn,
		channel:   channel,
		queueName: queue.Name,
		handler:   handler,
		enabled:   true,
	}, nil
}

func (c *EventConsumer) Start() error {
	if !c.enabled {
		log.Println("Event consumption is disabled")
		return nil
	}

	err := c.channel.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := c.processMessage(msg); err != nil {
				log.Printf("Failed to process message: %v", err)
				msg.Nack(false, true) // Nack and requeue
			} else {
				msg.Ack(false) // Acknowledge message
			}
		}
	}()

	log.Println("AI classification consumer started, waiting for messages...")
	return nil
}

func (c *EventConsumer) processMessage(msg amqp091.Delivery) error {
	log.Printf("Received message with routing key: %s", msg.RoutingKey)

	switch msg.RoutingKey {
	case classificationRoutingKey:
		return c.handleClassificationEvent(msg.Body)
	default:
		log.Printf("Unknown routing key: %s", msg.RoutingKey)
		return nil // Don't requeue unknown message types
	}
}

func (c *EventConsumer) handleClassificationEvent(body []byte) error {
	var classification ClassificationEvent
	if err := json.Unmarshal(body, &classification); err != nil {
		// A malformed payload will never deserialize on retry either.
		log.Printf("Dropping malformed classification event: %v", err)
		return nil
	}

	if classification.AttemptID == "" {
		log.Printf("No attempt ID in classification event, skipping")
		return nil
	}

	log.Printf("Processing classification for attempt %s: %s (%.2f)",
		classification.AttemptID, classification.Prediction, classification.Confidence)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return c.handler.HandleAiClassification(ctx, classification.AttemptID, classification.Prediction, classification.Confidence)
}

func (c *EventConsumer) Close() error {
	if !c.enabled {
		return nil
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
