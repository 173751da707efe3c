package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/infrastructure/mqtt"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

// Publisher is the part of the MQTT client the sink uses.
type Publisher interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes records as JSON on per-operation topics.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink publishing under topics with qos.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, qos: qos}
}

type eventMessage struct {
	Kind       operation.Kind         `json:"kind"`
	Federation federation.ID          `json:"federation_id"`
	Operation  federation.OperationID `json:"operation_id"`
	State      string                 `json:"state"`
	Event      any                    `json:"event"`
	Timestamp  string                 `json:"timestamp"`
}

type outcomeMessage struct {
	Kind       operation.Kind         `json:"kind"`
	Federation federation.ID          `json:"federation_id"`
	Operation  federation.OperationID `json:"operation_id"`
	Status     string                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
	Timestamp  string                 `json:"timestamp"`
}

type federationsMessage struct {
	Federations []federation.ID `json:"federation_ids"`
	Count       int             `json:"count"`
}

// Write publishes one event or outcome.
func (s *MQTTSink) Write(_ context.Context, rec Record) error {
	m := rec.Meta
	ts := rec.At.UTC().Format(time.RFC3339Nano)

	var (
		topic string
		body  any
	)
	if rec.Outcome {
		topic = s.topics.OperationOutcome(string(m.Federation), string(m.Kind), string(m.Operation))
		body = outcomeMessage{
			Kind:       m.Kind,
			Federation: m.Federation,
			Operation:  m.Operation,
			Status:     rec.Status.String(),
			Reason:     rec.Reason,
			ElapsedMS:  rec.Elapsed.Milliseconds(),
			Timestamp:  ts,
		}
	} else {
		topic = s.topics.OperationEvent(string(m.Federation), string(m.Kind), string(m.Operation))
		body = eventMessage{
			Kind:       m.Kind,
			Federation: m.Federation,
			Operation:  m.Operation,
			State:      rec.State,
			Event:      rec.Event,
			Timestamp:  ts,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", m.Kind, err)
	}
	return s.pub.PublishAsync(topic, payload, s.qos, false)
}

// WriteFederations publishes the registered ids as a retained message.
func (s *MQTTSink) WriteFederations(_ context.Context, ids []federation.ID) error {
	if ids == nil {
		ids = []federation.ID{}
	}
	payload, err := json.Marshal(federationsMessage{Federations: ids, Count: len(ids)})
	if err != nil {
		return fmt.Errorf("encoding federations: %w", err)
	}
	return s.pub.PublishAsync(s.topics.Federations(), payload, s.qos, true)
}

// PointWriter is the part of the InfluxDB client the sink uses.
type PointWriter interface {
	WriteOperationEvent(meta operation.Meta, state string)
	WriteOperationOutcome(meta operation.Meta, status, reason string, elapsed time.Duration)
	WriteFederationCount(n int)
}

// InfluxSink writes records as InfluxDB points.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink over w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Write records one event or outcome point.
func (s *InfluxSink) Write(_ context.Context, rec Record) error {
	if rec.Outcome {
		s.w.WriteOperationOutcome(rec.Meta, rec.Status.String(), rec.Reason, rec.Elapsed)
		return nil
	}
	s.w.WriteOperationEvent(rec.Meta, rec.State)
	return nil
}

// WriteFederations records the registry size.
func (s *InfluxSink) WriteFederations(_ context.Context, ids []federation.ID) error {
	s.w.WriteFederationCount(len(ids))
	return nil
}
