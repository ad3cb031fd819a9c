// Package influxdb records catalogue service metrics in InfluxDB.
//
// Two measurements are written:
//
//	compat_query  tag op;          fields duration_ms, total, has_query, filters, failed
//	compat_load   tag source_kind; fields rows, devices, duration_ms, ok
//
// Writes are batched and non-blocking (batch_size and flush_interval from
// the influxdb config section). A disconnected or closed client drops
// points silently; asynchronous write failures are reported through
// SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteQuery(influxdb.QueryMetric{Op: "query", Duration: d, Total: n})
package influxdb
