package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/baidu-iot/shadow-go/delta"
	"github.com/baidu-iot/shadow-go/inflight"
	"github.com/baidu-iot/shadow-go/topic"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(_ context.Context, t string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{topic: t, payload: payload})
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *topic.Contract, *inflight.Table, *delta.Registry, *fakePublisher) {
	t.Helper()
	contract := topic.New("dev1")
	inflightTable := inflight.New(4)
	deltas := delta.New(4)
	pub := &fakePublisher{}

	d := New("dev1", contract, inflightTable, deltas, pub,
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
		nil,
	)
	return d, contract, inflightTable, deltas, pub
}

func TestBeginConnectReachesReady(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)

	if d.Ready() {
		t.Fatal("Ready() = true before BeginConnect")
	}
	if err := d.BeginConnect(context.Background()); err != nil {
		t.Fatalf("BeginConnect: %v", err)
	}
	if !d.Ready() {
		t.Fatal("Ready() = false after successful BeginConnect")
	}
	if err := d.RequireReady(); err != nil {
		t.Errorf("RequireReady() = %v, want nil", err)
	}
}

func TestRequireReadyBeforeConnect(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	if err := d.RequireReady(); err == nil {
		t.Fatal("RequireReady() = nil before connecting, want ErrNotReady")
	}
}

func TestOnConnectionLostDropsToDown(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	if err := d.BeginConnect(context.Background()); err != nil {
		t.Fatalf("BeginConnect: %v", err)
	}

	d.OnConnectionLost()
	if d.Ready() {
		t.Fatal("Ready() = true after OnConnectionLost")
	}
	if err := d.RequireReady(); err == nil {
		t.Fatal("RequireReady() = nil after OnConnectionLost")
	}

	// Recovery requires an explicit BeginConnect, same as the initial
	// connect — the client does not resume on its own.
	if err := d.BeginConnect(context.Background()); err != nil {
		t.Fatalf("BeginConnect after connection loss: %v", err)
	}
	if !d.Ready() {
		t.Fatal("Ready() = false after reconnecting")
	}
}

func TestHandleInboundRoutesAcceptedReplyToInFlight(t *testing.T) {
	d, contract, inflightTable, _, _ := newTestDispatcher(t)

	var gotAck inflight.Ack
	if err := inflightTable.Insert("req-1", topic.Update, func(_ topic.Verb, ack inflight.Ack, _ any) {
		gotAck = ack
	}, nil, time.Second); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	d.HandleInbound(context.Background(), contract.UpdateAccepted, []byte(`{"requestId":"req-1","power":"on"}`))

	if gotAck.Status != inflight.Accepted {
		t.Fatalf("ack status = %v, want Accepted", gotAck.Status)
	}
	if inflightTable.Len() != 0 {
		t.Errorf("Len() after matched reply = %d, want 0", inflightTable.Len())
	}
}

func TestHandleInboundRoutesRejectedReply(t *testing.T) {
	d, contract, inflightTable, _, _ := newTestDispatcher(t)

	var gotAck inflight.Ack
	if err := inflightTable.Insert("req-2", topic.Get, func(_ topic.Verb, ack inflight.Ack, _ any) {
		gotAck = ack
	}, nil, time.Second); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	d.HandleInbound(context.Background(), contract.GetRejected, []byte(`{"requestId":"req-2","code":"E_NOT_FOUND","message":"no shadow"}`))

	if gotAck.Status != inflight.Rejected {
		t.Fatalf("ack status = %v, want Rejected", gotAck.Status)
	}
	if gotAck.Code != "E_NOT_FOUND" {
		t.Errorf("code = %q, want E_NOT_FOUND", gotAck.Code)
	}
}

func TestHandleInboundDropsUnmatchedReply(t *testing.T) {
	d, contract, _, _, _ := newTestDispatcher(t)
	// No in-flight entry registered; this must not panic and must simply
	// log-and-drop.
	d.HandleInbound(context.Background(), contract.UpdateAccepted, []byte(`{"requestId":"unknown"}`))
}

func TestHandleInboundDropsUnknownTopic(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	d.HandleInbound(context.Background(), "baidu/iot/shadow/dev1/unknown", []byte(`{}`))
}

func TestHandleInboundDropsUndersizedPayload(t *testing.T) {
	d, contract, _, _, _ := newTestDispatcher(t)
	d.HandleInbound(context.Background(), contract.Delta, []byte("{"))
}

func TestHandleInboundDispatchesDeltaToRegisteredHandler(t *testing.T) {
	d, contract, _, deltas, _ := newTestDispatcher(t)

	var got json.RawMessage
	if err := deltas.Register("brightness", func(_ string, value json.RawMessage) delta.UserError {
		got = value
		return delta.UserError{}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d.HandleInbound(context.Background(), contract.Delta, []byte(`{"requestId":"req-3","desired":{"brightness":80}}`))

	if string(got) != "80" {
		t.Errorf("handler received %s, want 80", got)
	}
}

func TestHandleInboundPublishesDeltaRejection(t *testing.T) {
	d, contract, _, deltas, pub := newTestDispatcher(t)

	if err := deltas.Register("", func(string, json.RawMessage) delta.UserError {
		return delta.UserError{Code: "E_RANGE", Message: "out of range"}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d.HandleInbound(context.Background(), contract.Delta, []byte(`{"requestId":"req-4","desired":{"brightness":999}}`))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.sent))
	}
	if pub.sent[0].topic != contract.DeltaRejected {
		t.Errorf("published to %q, want %q", pub.sent[0].topic, contract.DeltaRejected)
	}
}
