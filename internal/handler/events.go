package handler

import (
	"encoding/json"

	"github.com/IBM/sarama"

	"github.com/openshelf/library-service/pkg/kafka"
)

// Recorder publishes borrow audit events. Failures are logged by the
// caller and never fail the request.
type Recorder interface {
	Record(ev kafka.BorrowEvent) error
}

type kafkaRecorder struct {
	producer sarama.SyncProducer
	topic    string
}

func NewRecorder(producer sarama.SyncProducer) Recorder {
	return &kafkaRecorder{
		producer: producer,
		topic:    kafka.BorrowEventsTopic,
	}
}

func (r *kafkaRecorder) Record(ev kafka.BorrowEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: r.topic, Value: sarama.StringEncoder(data)}
	if _, _, err = r.producer.SendMessage(msg); err != nil {
		return err
	}
	return nil
}

type nopRecorder struct{}

// NewNopRecorder is used when no kafka brokers are configured.
func NewNopRecorder() Recorder {
	return nopRecorder{}
}

func (nopRecorder) Record(kafka.BorrowEvent) error { return nil }
