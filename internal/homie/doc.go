// Package homie assembles an in-memory model of devices that follow the Homie
// MQTT convention.
//
// Devices publish their metadata as individual retained topics under a common
// prefix. Those topics reach a subscriber in no particular order and are
// interleaved across many devices. This package consumes that stream one
// (topic, payload) pair at a time and grows a device → node → property tree,
// exposing an entity only once all of its required attributes have arrived.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                             Client                                 │
//	│  Submit(topic, payload) ── strip prefix, split device id           │
//	│                                                                    │
//	│  pending devices (buffered topics)      complete devices           │
//	│        │ promote when $homie $name $state $nodes present           │
//	│        ▼                                                           │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────┐            │
//	│  │    Device    │──▶│     Node     │──▶│   Property   │            │
//	│  │ pending nodes│   │ pending props│   │ attrs + value│            │
//	│  │ IsReady()    │   │ value buffer │   │ Snapshot()   │            │
//	│  └──────────────┘   └──────────────┘   └──────────────┘            │
//	│                                                                    │
//	│  Handlers: six single-slot callbacks, invoked under the client lock│
//	└───────────────────────────────────────────────────────────────────┘
//
// # Completeness
//
// Every level keeps children in exactly one of two collections: pending
// (attributes still arriving) or complete. A child moves from pending to
// complete exactly once, the moment its required attributes are all present:
//
//   - Device: $homie, $name, $state, $nodes
//   - Node: $name, $type, $properties
//   - Property: $name, $datatype
//
// Discovery events are emitted parent first. A node completed while its device
// is still being replayed is announced right after the device.
//
// # Readiness
//
// A device is ready when none of its announced nodes are pending and its $state
// is "ready" or "alert". Property update notifications are only delivered for
// ready devices.
//
// # Usage
//
//	client := homie.NewClient("homie")
//	client.SetLogger(log)
//	client.SetHandlers(homie.Handlers{
//	    DeviceDiscovered: func(d *homie.Device) {
//	        log.Info("device discovered", "id", d.ID(), "name", d.Name())
//	    },
//	    PropertyUpdated: func(p *homie.Property, v homie.Value) {
//	        log.Info("property updated", "property", p.Path(), "value", v.Value)
//	    },
//	})
//
//	// Feed from the transport
//	mqttClient.Subscribe(homie.SubscriptionTopic("homie"), 1, client.Submit)
//
//	// Query
//	dev, err := client.Device("sensor1")
//	temp, err := dev.Node("dht")...Value("temperature")
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. One mutex serialises message
// processing, handler invocation and reads. Handlers run while that mutex is
// held: they may read the entities they receive but must not call Client
// methods. Entities returned by Client.Device and Client.Devices are detached
// deep copies.
package homie
