// Package mqtt connects lightbridge to the broker that carries smart-switch
// telemetry.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and backoff
//   - Topic subscriptions that are restored after every reconnect
//   - A retained presence message and Last Will on lightbridge/system/status
//   - Panic recovery around message handlers
//
// # Ordering
//
// The client is configured with ordered delivery, so handlers for one
// subscription run sequentially in arrival order. Handlers must hand the
// payload off quickly; a slow handler stalls the whole feed.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Topic, byte(cfg.MQTT.QoS),
//	    func(topic string, payload []byte) error {
//	        return hub.HandleMessage(topic, payload)
//	    })
package mqtt
