// Package mqtt provides MQTT client connectivity for homiewatch.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Topic subscriptions, restored after every reconnect
//   - Publishing commands to Homie "/set" topics
//   - A retained online/offline status and last will on a configurable topic
//   - Handler panic recovery and error logging
//
// # Architecture
//
// Homie devices publish their whole description as retained topics. The
// service subscribes to "<prefix>/#" and the broker replays the retained tree,
// followed by live updates, into homie.Client.Submit.
//
//	Homie devices → MQTT Broker → mqtt.Client → homie.Client
//
// The status topic must lie outside the Homie prefix so the service never
// discovers itself.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(homie.SubscriptionTopic(cfg.Homie.Prefix), byte(cfg.MQTT.QoS), homieClient.Submit)
package mqtt
