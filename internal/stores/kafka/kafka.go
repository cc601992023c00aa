package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Conf produces domain events. A Conf without brokers drops every message.
type Conf struct {
	client  *kgo.Client
	timeout time.Duration
}

func NewConf(brokers []string) (*Conf, error) {
	if len(brokers) == 0 {
		return &Conf{}, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping kafka: %w", err)
	}

	return &Conf{client: client, timeout: 10 * time.Second}, nil
}

func (k *Conf) Enabled() bool {
	return k != nil && k.client != nil
}

// ProduceMessage writes one record synchronously.
func (k *Conf) ProduceMessage(ctx context.Context, topic string, key, value []byte) error {
	if !k.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", topic, err)
	}
	return nil
}

func (k *Conf) Close() {
	if k.Enabled() {
		k.client.Close()
	}
}
