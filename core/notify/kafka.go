// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/logger"
)

// KafkaConfiguration configures the Kafka notifier
type KafkaConfiguration struct {
	Brokers []string
	Topic   string
	// WriteTimeout defaults to 10 seconds
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications to a Kafka topic. Messages are keyed by
// resource and id so that all changes of one record land in the same partition.
type Kafka struct {
	writer messageWriter
	topic  string
}

// NewKafka returns a new Kafka notifier
func NewKafka(kafkaConfig KafkaConfiguration) (*Kafka, error) {
	if len(kafkaConfig.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers must not be empty")
	}
	if kafkaConfig.Topic == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	if kafkaConfig.WriteTimeout == 0 {
		kafkaConfig.WriteTimeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(kafkaConfig.Brokers...),
		Topic:                  kafkaConfig.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           kafkaConfig.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	logger.Default().Debugln("kafka notifications enabled, topic", kafkaConfig.Topic)
	return &Kafka{writer: writer, topic: kafkaConfig.Topic}, nil
}

// Notify implements core.Notifier
func (k *Kafka) Notify(ctx context.Context, notification core.Notification) error {
	value, err := Encode(notification)
	if err != nil {
		return err
	}
	message := kafka.Message{
		Key:   []byte(notification.Resource + "/" + notification.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "resource", Value: []byte(notification.Resource)},
			{Key: "operation", Value: []byte(notification.Operation)},
		},
	}
	if err := k.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("cannot write to kafka topic %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
