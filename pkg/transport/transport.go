// Package transport defines the MQTT transport contract the shadow engine
// is built against. Connection management, reconnection, subscribe QoS and
// publish semantics are the transport's responsibility; the engine only
// ever sees this interface.
package transport

import "context"

// MessageHandler processes one inbound message. It must not block for long
// — implementations typically run it off the transport's read loop.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client abstracts the underlying MQTT connection. QoS is 1 in both
// directions per the shadow protocol's contract.
type Client interface {
	// Start initiates the connection, non-blocking. Use AwaitConnection to
	// wait for the result.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends payload to topic at the given QoS.
	Publish(ctx context.Context, topic string, qos int, payload []byte) error

	// SubscribeMany subscribes to every topic in topics at qos, installing
	// handler as the callback for all of them. On reconnect the
	// implementation re-subscribes automatically.
	SubscribeMany(ctx context.Context, topics []string, qos int, handler MessageHandler) error

	// AwaitConnection blocks until connected or ctx is done.
	AwaitConnection(ctx context.Context) error

	// OnConnectionLost registers a callback invoked whenever the
	// connection drops. It does not fire for the initial connect attempt.
	OnConnectionLost(func())
}
