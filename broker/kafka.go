// Package broker publishes decoded channel traffic onto a message bus so
// other tools can subscribe to the split streams without attaching to the
// local endpoints.
package broker

import (
	"strconv"

	"github.com/Shopify/sarama"
	slog "github.com/vearne/simplelog"
)

// KafkaOutput publishes one message per stimulus write, keyed by channel
// index so per-channel ordering survives partitioning.
type KafkaOutput struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewKafkaOutput(brokers []string, topic string) (*KafkaOutput, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	k := &KafkaOutput{producer: producer, topic: topic}
	go func() {
		for err := range producer.Errors() {
			slog.Error("kafka publish: %v", err)
		}
	}()
	return k, nil
}

// Publish enqueues data for the given channel; delivery is asynchronous.
func (k *KafkaOutput) Publish(channel int, data []byte) {
	k.producer.Input() <- &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(channel)),
		Value: sarama.ByteEncoder(data),
	}
}

func (k *KafkaOutput) Close() error {
	return k.producer.Close()
}
