// Package mqtt publishes gateway telemetry to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload limits
//   - A retained status topic with Last Will and Testament for offline detection
//   - Topic naming under a configurable prefix
//
// Topic layout, with the default prefix:
//
//	fedimint-http/status                                      retained online/offline
//	fedimint-http/federations                                 retained federation id list
//	fedimint-http/operations/{federation}/{kind}/{op}/event   every lifecycle event
//	fedimint-http/operations/{federation}/{kind}/{op}/outcome final outcome
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Publish(topics.Status(), payload, 1, true)
package mqtt
