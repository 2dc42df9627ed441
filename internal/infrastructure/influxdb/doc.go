// Package influxdb writes Homie property values to InfluxDB v2.
//
// Numeric and boolean property updates become points in the homie_property
// measurement, tagged with device, node, property and unit. Writes go through
// the client library's non-blocking batching API; failures are reported
// asynchronously through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteProperty(influxdb.Sample{
//	    DeviceID: "sensor1", NodeID: "dht", PropertyID: "temperature",
//	    Unit: "°C", Value: 21.5,
//	})
package influxdb
