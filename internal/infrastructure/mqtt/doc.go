// Package mqtt provides the MQTT client used to mirror device status to a
// broker and to accept commands from it.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained status publishing under <prefix>/<kind>/<name>/<key>
//   - Command subscriptions under <prefix>/<kind>/<name>/set
//   - Last Will and Testament on <prefix>/system/health
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.Prefix)
//	err = client.PublishRetained(topics.Status("light", "kitchen", "bri"), []byte("80"))
//
// Handlers registered with Subscribe are restored after a reconnect.
package mqtt
