package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/settlement-reconciliation/internal/config"
)

type PayoutReqMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new API Gateway payout producer and ensures topic exists
func NewPayoutReqMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*PayoutReqMessageProducer, error) {
	if cfg.PayoutTopic == "" {
		return nil, fmt.Errorf("kafka payout topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for payout producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopicExists(conn, cfg.PayoutTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure payout topic %s exists for payout producer: %w", cfg.PayoutTopic, err)
	}

	// Payout requests move money; every write is acknowledged by all replicas
	// and published synchronously so the HTTP caller learns about failures.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.PayoutTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write payout messages", "topic", cfg.PayoutTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote payout messages", "topic", cfg.PayoutTopic, "count", len(messages))
			}
		},
	}

	return &PayoutReqMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.PayoutTopic,
	}, nil
}

func (p *PayoutReqMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for payout producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via payout producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via payout producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via payout producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *PayoutReqMessageProducer) Close() error {
	p.logger.Info("Closing payout Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close payout kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
