// Package influxdb records status history in InfluxDB.
//
// Every numeric status change the bridge emits (brightness, temperature,
// lux, battery, motion and so on) can be kept as a time series, together
// with periodic bridge health samples.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStatus("porch", "sensor", "temp", 18.4)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; failures arrive on
// the callback set with SetOnError.
package influxdb
