package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

// Producer publishes session lifecycle events to Kafka. It satisfies the
// engine's event sink and never blocks gameplay: serialization or broker
// failures are logged and dropped.
type Producer struct {
	config   *config.KafkaConfig
	producer sarama.AsyncProducer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProducer creates a new Kafka event producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		config:   cfg,
		producer: producer,
		logger:   logger,
	}

	// Drain errors so the producer never stalls
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Error("producer error", "error", err)
		}
	}()

	return p, nil
}

// Publish sends one lifecycle event, keyed by session ID so per-session
// ordering is preserved within a partition.
func (p *Producer) Publish(ctx context.Context, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "error", err, "type", event.Type)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.EventsTopic,
		Key:   sarama.StringEncoder(event.SessionID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
	case <-ctx.Done():
	}
}

// Close flushes pending messages and stops the producer
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
