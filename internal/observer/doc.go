// Package observer connects the Homie discovery tree to the rest of the
// service.
//
// An Observer supplies the homie.Handlers value installed on the client and
// fans every discovery and update event out to its sinks:
//
//	homie.Client ──► Observer ─┬─► WebSocket hub (one channel per event type)
//	                           ├─► property history (SQLite)
//	                           ├─► telemetry (InfluxDB)
//	                           ├─► Prometheus counters
//	                           └─► structured log
//
// Handlers run while the client holds its lock, so sinks receive plain values
// built from the entities and never the entities themselves. Every sink is
// optional and a failing sink never stops the others.
package observer
