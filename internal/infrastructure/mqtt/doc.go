// Package mqtt provides the broker connection for AirGuard Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and exponential backoff
//   - Subscriptions with wildcard filter validation
//   - Online/offline status with a Last Will on airguard/system/status
//   - Connect, disconnect and reconnect callbacks for state tracking
//
// # Architecture
//
// Field gateways publish JSON telemetry to the broker; the ingestion
// subscriber consumes it through this client.
//
//	Gateways → MQTT Broker → Client → ingest.Subscriber → SQLite
//
// Sessions are clean. Subscriptions are dropped with the connection and the
// owner re-subscribes from its SetOnConnect callback.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnConnect(func() {
//	    _ = client.Subscribe("gas/datos", 1, handle)
//	})
package mqtt
