// Package dispatch implements the inbound message demultiplexer: it
// classifies each MQTT message by topic and routes it to the in-flight
// correlator or the delta registry, and it drives the per-client
// connection state machine that gates the public operations on READY.
package dispatch

import (
	"context"
	"sync"

	"github.com/looplab/fsm"

	"github.com/baidu-iot/shadow-go/delta"
	"github.com/baidu-iot/shadow-go/inflight"
	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/metrics"
	"github.com/baidu-iot/shadow-go/topic"
	"github.com/baidu-iot/shadow-go/wire"
)

// Publisher is the minimal transport surface the dispatcher needs to
// answer a rejected delta.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Dispatcher owns one client's connection state and routes its inbound
// messages. It holds no lock of its own over the in-flight table or delta
// registry — those lock themselves — but serializes FSM transitions with
// its own mutex, since fsm.FSM is not safe for concurrent use.
type Dispatcher struct {
	mu       sync.Mutex
	machine  *fsm.FSM
	contract *topic.Contract
	inflight *inflight.Table
	deltas   *delta.Registry
	pub      Publisher
	name     string
	metrics  *metrics.Metrics
}

// New wires a Dispatcher for one device's topic contract, in-flight table
// and delta registry. connect/subscribe are invoked by the FSM as the
// connection progresses through CONNECTING and SUBSCRIBING. m is optional;
// pass nil to skip metrics.
func New(deviceName string, contract *topic.Contract, inflightTable *inflight.Table, deltas *delta.Registry, pub Publisher,
	connect, subscribe func(ctx context.Context) error, m *metrics.Metrics) *Dispatcher {

	d := &Dispatcher{
		contract: contract,
		inflight: inflightTable,
		deltas:   deltas,
		pub:      pub,
		name:     deviceName,
		metrics:  m,
	}

	d.machine = newConnectionFSM(
		func(ctx context.Context, _ *fsm.Event) error { return connect(ctx) },
		func(ctx context.Context, _ *fsm.Event) error {
			return subscribe(ctx)
		},
		func(ctx context.Context, _ *fsm.Event) error {
			log.Info("shadow client ready", "device", deviceName)
			return nil
		},
		nil,
	)
	return d
}

// BeginConnect drives DOWN -> CONNECTING -> SUBSCRIBING -> READY. It
// returns once a terminal outcome is reached: either READY or a transition
// error from the connect/subscribe callbacks. Calling it again after
// OnConnectionLost re-runs the same sequence; the connect/subscribe
// callbacks must tolerate being invoked on an already-running transport
// (see pahomqtt.client.Start).
func (d *Dispatcher) BeginConnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A failing enter_ callback leaves the machine in the state it entered,
	// so a failed attempt takes an edge back to DOWN explicitly.
	if err := d.machine.Event(ctx, eventConnect); err != nil {
		_ = d.machine.Event(ctx, eventConnectFail)
		return unwrapFSMErr(err)
	}
	if err := d.machine.Event(ctx, eventConnected); err != nil {
		_ = d.machine.Event(ctx, eventConnLost)
		return unwrapFSMErr(err)
	}
	if err := d.machine.Event(ctx, eventSubscribed); err != nil {
		return unwrapFSMErr(err)
	}
	return nil
}

// OnConnectionLost transitions back to DOWN. It does not clear the
// in-flight table; entries time out naturally, and any late replies after
// a reconnect are still honored if the transport redelivers them. READY is
// only re-entered by a fresh BeginConnect — this client does not resume on
// its own just because the transport silently reconnects underneath it.
func (d *Dispatcher) OnConnectionLost() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.machine.Event(context.Background(), eventConnLost)
}

// Ready reports whether the client is currently in the READY state.
func (d *Dispatcher) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.Is(StateReady)
}

// RequireReady returns ErrNotReady unless the client is READY. Public
// operations that need a subscribed connection call this first.
func (d *Dispatcher) RequireReady() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.machine.Is(StateReady) {
		return ErrNotReady{Current: d.machine.Current()}
	}
	return nil
}

// HandleInbound implements the inbound dispatch algorithm: classify the
// topic, decode JSON, and route to the in-flight table or delta registry.
// Anomalies (undersized payload, bad JSON, unknown topic, missing
// requestId, unmatched reply) are logged and dropped — never raised to a
// caller.
func (d *Dispatcher) HandleInbound(ctx context.Context, inboundTopic string, payload []byte) {
	if len(payload) < 3 {
		log.Warn("dropping undersized payload", "device", d.name, "topic", inboundTopic)
		return
	}

	class, ok := d.contract.Classify(inboundTopic)
	if !ok {
		log.Warn("dropping message on unrecognized topic", "device", d.name, "topic", inboundTopic)
		return
	}

	if class.IsDelta {
		if inboundTopic == d.contract.DeltaRejected {
			// We only ever publish to delta/rejected; nothing is subscribed
			// on it being echoed back, but classify() matches it first by
			// design (longest prefix). Treat as an anomaly.
			log.Warn("unexpected message on delta/rejected", "device", d.name)
			return
		}
		d.handleDelta(ctx, payload)
		return
	}

	d.handleReply(inboundTopic, class, payload)
}

func (d *Dispatcher) handleDelta(ctx context.Context, payload []byte) {
	body, err := wire.DecodeDelta(payload)
	if err != nil {
		log.Warn("dropping malformed delta payload", "device", d.name, "err", err)
		return
	}

	userErr, rejected := d.deltas.Dispatch(body.Desired)
	if !rejected {
		if d.metrics != nil {
			d.metrics.DeltasTotal.WithLabelValues("ok").Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.DeltasTotal.WithLabelValues("rejected").Inc()
	}

	out, err := wire.EncodeRejected(body.RequestID, userErr.Code, userErr.Message)
	if err != nil {
		log.Error(err, "failed to encode delta rejection", "device", d.name)
		return
	}

	if err := d.pub.Publish(ctx, d.contract.DeltaRejected, out); err != nil {
		log.Error(err, "failed to publish delta rejection", "device", d.name)
	}
}

func (d *Dispatcher) handleReply(inboundTopic string, class topic.Classification, payload []byte) {
	ack := inflight.Ack{}
	var requestID string

	if class.Accepted {
		doc, err := wire.DecodeAccepted(payload)
		if err != nil {
			log.Warn("dropping malformed reply payload", "device", d.name, "topic", inboundTopic, "err", err)
			return
		}
		requestID = doc.RequestID
		ack.Status = inflight.Accepted
		ack.Document = doc.Raw
	} else {
		body, err := wire.DecodeRejected(payload)
		if err != nil {
			log.Warn("dropping malformed reply payload", "device", d.name, "topic", inboundTopic, "err", err)
			return
		}
		requestID = body.RequestID
		ack.Status = inflight.Rejected
		ack.Code = body.Code
		ack.Message = body.Message
	}

	if requestID == "" {
		log.Warn("dropping reply with no requestId", "device", d.name, "topic", inboundTopic)
		return
	}

	if !d.inflight.Complete(requestID, ack) {
		log.Warn("no in-flight request matching reply", "device", d.name, "requestId", requestID)
	}
}

func unwrapFSMErr(err error) error {
	if invalid, ok := err.(fsm.InvalidEventError); ok {
		return invalid
	}
	return err
}
