// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alert

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// messageWriter is the part of kafka.Writer used by the Kafka sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka is a Sink publishing alerts as JSON messages to a Kafka topic, keyed
// by container ID so that the alerts for the same container keep their order.
type Kafka struct {
	w   messageWriter
	log *zap.Logger
}

var _ Sink = (*Kafka)(nil)

// KafkaOption configures a Kafka sink.
type KafkaOption func(*Kafka)

// WithKafkaLogger sets the logger for asynchronous delivery failures.
func WithKafkaLogger(log *zap.Logger) KafkaOption {
	return func(k *Kafka) { k.log = logging.Component(log, "alert.kafka") }
}

// NewKafka returns a new Kafka sink publishing to the specified topic on the
// specified brokers. Messages get written asynchronously, so Send doesn't wait
// for the brokers to acknowledge; delivery failures get logged instead.
func NewKafka(brokers []string, topic string, opts ...KafkaOption) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no Kafka brokers specified")
	}
	if topic == "" {
		return nil, errors.New("no Kafka topic specified")
	}
	k := &Kafka{log: zap.NewNop()}
	for _, opt := range opts {
		opt(k)
	}
	k.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				k.log.Warn("cannot deliver alerts",
					zap.Int("count", len(msgs)), zap.Error(err))
			}
		},
	}
	return k, nil
}

// Send publishes the specified alert.
func (k *Kafka) Send(ctx context.Context, a Alert) error {
	val, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "cannot marshal alert")
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.ContainerID),
		Value: val,
		Time:  a.At,
	}); err != nil {
		return errors.Wrap(err, "cannot publish alert")
	}
	return nil
}

// Close flushes pending alerts and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
