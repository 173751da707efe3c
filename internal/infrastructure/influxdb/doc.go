// Package influxdb records operation telemetry in InfluxDB v2.
//
// Every operation event becomes an "operation_event" point and every
// terminal outcome an "operation_outcome" point carrying the elapsed
// time. The registry size is written as "federations".
//
// Writes are non-blocking and batched by the client library according to
// batch_size and flush_interval. Asynchronous write errors are delivered
// to the callback registered with SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteOperationOutcome(meta, "success", "", elapsed)
package influxdb
