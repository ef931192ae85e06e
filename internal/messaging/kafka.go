package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/validation"
	"github.com/temcen/newsrank/pkg/models"
)

// ArticleMessage is one batch of articles on the ingestion topic.
type ArticleMessage struct {
	BatchID     uuid.UUID             `json:"batch_id"`
	Articles    []models.ArticleInput `json:"articles"`
	PublishedAt time.Time             `json:"published_at"`
	RetryCount  int                   `json:"retry_count"`
}

// Handler processes a decoded message. Returning an error triggers a retry.
type Handler func(ctx context.Context, message ArticleMessage) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Stats() kafka.ReaderStats
	Close() error
}

type MessageBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	validator  *validation.SchemaValidator
	topic      string
	dlqTopic   string
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewMessageBus(cfg *config.KafkaConfig, validator *validation.SchemaValidator, logger *logrus.Logger) *MessageBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.ArticleIngestion,
		Balancer:     &kafka.Hash{}, // keyed by source
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topics.ArticleIngestion,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topics.DeadLetter,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newMessageBus(writer, reader, dlqWriter, validator, cfg, logger)
}

func newMessageBus(writer messageWriter, reader messageReader, dlqWriter messageWriter, validator *validation.SchemaValidator, cfg *config.KafkaConfig, logger *logrus.Logger) *MessageBus {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &MessageBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlqWriter,
		validator:  validator,
		topic:      cfg.Topics.ArticleIngestion,
		dlqTopic:   cfg.Topics.DeadLetter,
		maxRetries: maxRetries,
		retryDelay: time.Second,
		logger:     logger,
	}
}

// PublishArticles writes the batch as a single message keyed by the source
// of its first article.
func (mb *MessageBus) PublishArticles(ctx context.Context, articles []models.ArticleInput) error {
	if len(articles) == 0 {
		return nil
	}

	message := ArticleMessage{
		BatchID:     uuid.New(),
		Articles:    articles,
		PublishedAt: time.Now().UTC(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := articles[0].Source
	kafkaMessage := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(message.BatchID.String())},
			{Key: "source", Value: []byte(key)},
			{Key: "timestamp", Value: []byte(message.PublishedAt.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		mb.logger.WithError(err).WithField("batch_id", message.BatchID).Error("Failed to publish message to Kafka")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"batch_id": message.BatchID,
		"articles": len(articles),
		"topic":    mb.topic,
	}).Info("Message published to Kafka")

	return nil
}

// Consume reads messages until ctx is cancelled. Messages that fail schema
// validation go straight to the dead-letter topic; the rest are retried with
// exponential backoff before being dead-lettered.
func (mb *MessageBus) Consume(ctx context.Context, handler Handler) error {
	for {
		raw, err := mb.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(mb.retryDelay):
			}
			continue
		}

		mb.handleMessage(ctx, raw, handler)
	}
}

func (mb *MessageBus) handleMessage(ctx context.Context, raw kafka.Message, handler Handler) {
	if result := mb.validator.ValidateArticleMessage(raw.Value); !result.Valid {
		err := result.Err()
		mb.logger.WithError(err).WithField("offset", raw.Offset).Warn("Rejecting invalid ingestion message")
		if dlqErr := mb.sendToDLQ(ctx, raw.Value, uuid.Nil, err); dlqErr != nil {
			mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
		}
		return
	}

	var message ArticleMessage
	if err := json.Unmarshal(raw.Value, &message); err != nil {
		mb.logger.WithError(err).Error("Failed to unmarshal Kafka message")
		if dlqErr := mb.sendToDLQ(ctx, raw.Value, uuid.Nil, err); dlqErr != nil {
			mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
		}
		return
	}

	if err := mb.processWithRetry(ctx, message, handler); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		mb.logger.WithError(err).WithField("batch_id", message.BatchID).Error("Failed to process message after retries")
		if dlqErr := mb.sendToDLQ(ctx, raw.Value, message.BatchID, err); dlqErr != nil {
			mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, message ArticleMessage, handler Handler) error {
	for attempt := 0; attempt <= mb.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := mb.retryDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"batch_id": message.BatchID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying message processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		if err := handler(ctx, message); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"batch_id": message.BatchID,
				"attempt":  attempt,
			}).Warn("Message processing failed")

			if attempt == mb.maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		mb.logger.WithFields(logrus.Fields{
			"batch_id": message.BatchID,
			"attempt":  attempt,
		}).Debug("Message processed successfully")
		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, original []byte, batchID uuid.UUID, cause error) error {
	dlqMessage := map[string]interface{}{
		"original_message": json.RawMessage(original),
		"error":            cause.Error(),
		"dlq_timestamp":    time.Now().UTC(),
	}
	if !json.Valid(original) {
		dlqMessage["original_message"] = string(original)
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(batchID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(batchID.String())},
			{Key: "original_topic", Value: []byte(mb.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"batch_id":  batchID,
		"dlq_topic": mb.dlqTopic,
		"error":     cause.Error(),
	}).Warn("Message sent to DLQ")

	return nil
}

func (mb *MessageBus) Close() error {
	var errs []error

	if err := mb.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := mb.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := mb.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	return errors.Join(errs...)
}

// Stats returns consumer counters for the health endpoint.
func (mb *MessageBus) Stats() map[string]interface{} {
	stats := mb.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"errors":          stats.Errors,
	}
}
