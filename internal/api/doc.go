// Package api serves the discovered Homie tree over HTTP and streams tree
// events over WebSocket.
//
// Endpoints (all JSON):
//
//	GET  /api/v1/health
//	GET  /api/v1/stats
//	GET  /api/v1/devices                      ?ready=true|false
//	GET  /api/v1/devices/pending
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/nodes/{node}
//	GET  /api/v1/devices/{id}/nodes/{node}/properties/{property}
//	PUT  /api/v1/devices/{id}/nodes/{node}/properties/{property}   {"value": ...}
//	GET  /api/v1/devices/{id}/nodes/{node}/properties/{property}/history
//	GET  /api/v1/ws
//	GET  /metrics                             (Prometheus)
//
// Reads work on detached copies of the tree, so a slow client never holds the
// discovery lock. PUT publishes to the property's Homie /set topic and
// returns 202; the tree changes only when the device reports the new value.
//
// The server works without MQTT, history or metrics: the affected endpoints
// answer 503 or are not routed.
package api
