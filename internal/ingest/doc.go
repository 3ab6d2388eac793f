// Package ingest runs the telemetry pipeline from broker to store.
//
//	mqtt callback → bounded queue → worker → Decode → Normalize → Dispatch
//
// The Subscriber owns the broker subscription and the single worker
// goroutine. It moves through disconnected, connecting, connected and
// subscribed as the transport reports connection events, and subscribes
// every configured topic again after each reconnect because sessions are
// clean.
//
// The Dispatcher writes one message per SQLite transaction: the device is
// registered if absent, then a sensor reading, a control state and the
// actuator row referencing that control state are inserted. A failure at
// any step rolls back the whole message. Committed messages are passed to
// optional post-commit sinks such as the InfluxDB mirror.
//
// Every processed message ends in exactly one Outcome (see Classify),
// which is logged with the message_id and counted in Metrics.
package ingest
