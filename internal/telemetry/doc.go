// Package telemetry relays operation events and outcomes to external sinks.
//
// The Relay implements operation.Recorder. Recording never blocks a
// waiter: records are queued on a bounded channel and written serially by
// Run. When the queue is full the record is dropped and counted.
//
// Sinks provided here publish to MQTT and write InfluxDB points; the
// sqlite operation journal lives in package journal.
package telemetry
