package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/fedimint-http/internal/operation"
)

// Measurement names.
const (
	MeasurementEvent       = "operation_event"
	MeasurementOutcome     = "operation_outcome"
	MeasurementFederations = "federations"
)

// WriteOperationEvent records one lifecycle event. The operation id is a
// field, not a tag, to keep series cardinality bounded.
func (c *Client) WriteOperationEvent(meta operation.Meta, state string) {
	c.writePoint(MeasurementEvent,
		map[string]string{
			"kind":       string(meta.Kind),
			"federation": string(meta.Federation),
			"state":      state,
		},
		map[string]any{
			"operation_id": string(meta.Operation),
			"count":        1,
		})
}

// WriteOperationOutcome records how an operation finished.
func (c *Client) WriteOperationOutcome(meta operation.Meta, status, reason string, elapsed time.Duration) {
	fields := map[string]any{
		"operation_id":   string(meta.Operation),
		"duration_ms":    elapsed.Milliseconds(),
		"duration_float": elapsed.Seconds(),
	}
	if reason != "" {
		fields["reason"] = reason
	}
	c.writePoint(MeasurementOutcome,
		map[string]string{
			"kind":       string(meta.Kind),
			"federation": string(meta.Federation),
			"status":     status,
		},
		fields)
}

// WriteFederationCount records the number of registered federations.
func (c *Client) WriteFederationCount(n int) {
	c.writePoint(MeasurementFederations, nil, map[string]any{"count": n})
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}
