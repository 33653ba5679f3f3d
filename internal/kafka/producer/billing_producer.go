package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// TopicBillingEvents топик событий биллинга
const TopicBillingEvents = "billing.events"

// BillingProducer публикует события биллинга в Kafka.
// Реализует service.AuditEventSink.
type BillingProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewBillingProducer создает новый продюсер событий биллинга
func NewBillingProducer(producer sarama.SyncProducer, log *logger.Logger) *BillingProducer {
	return &BillingProducer{
		producer: producer,
		log:      log,
	}
}

// Publish публикует событие биллинга.
// Ключ сообщения — ID подписки: события одной подписки попадают
// в одну партицию и сохраняют порядок.
func (p *BillingProducer) Publish(ctx context.Context, event domain.BillingEvent) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal billing event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: TopicBillingEvents,
		Key:   sarama.StringEncoder(event.SubscriptionID),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.Type),
			},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish billing event: %w", err)
	}

	p.log.Debugw("Published billing event",
		"type", event.Type,
		"subscriptionID", event.SubscriptionID,
		"partition", partition,
		"offset", offset)

	return nil
}

// Close закрывает продюсер
func (p *BillingProducer) Close() error {
	return p.producer.Close()
}
