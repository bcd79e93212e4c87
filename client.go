// Package shadow implements an MQTT-based device shadow client: publish
// reported state, request the current document, and receive cloud-pushed
// deltas, all correlated by request-id over a fixed topic family.
//
// A Client owns one device's topic contract, in-flight table and delta
// registry. Connect blocks until the client is subscribed and ready;
// Update, Get and Delete are fire-and-correlate — they publish once and
// deliver exactly one callback, either Accepted, Rejected or Timeout.
package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/baidu-iot/shadow-go/delta"
	"github.com/baidu-iot/shadow-go/dispatch"
	"github.com/baidu-iot/shadow-go/inflight"
	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/metrics"
	"github.com/baidu-iot/shadow-go/pkg/transport"
	"github.com/baidu-iot/shadow-go/pkg/transport/pahomqtt"
	"github.com/baidu-iot/shadow-go/registry"
	"github.com/baidu-iot/shadow-go/topic"
	"github.com/baidu-iot/shadow-go/wire"
)

// Code is the taxonomy of synchronous return codes a public operation can
// report. Asynchronous outcomes travel through an Ack instead.
type Code int

const (
	Success Code = iota
	Failure
	NullPointer
	BadArgument
	NotConnected
	TooManyInFlightMessage
	NoMatchingInFlightMessage
	TooManyShadowPropertyHandler
)

func (c Code) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	case NullPointer:
		return "NULL_POINTER"
	case BadArgument:
		return "BAD_ARGUMENT"
	case NotConnected:
		return "NOT_CONNECTED"
	case TooManyInFlightMessage:
		return "TOO_MANY_IN_FLIGHT_MESSAGE"
	case NoMatchingInFlightMessage:
		return "NO_MATCHING_IN_FLIGHT_MESSAGE"
	case TooManyShadowPropertyHandler:
		return "TOO_MANY_SHADOW_PROPERTY_HANDLER"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Code so callers can errors.As it out of a returned error.
type Error struct{ Code Code }

func (e Error) Error() string { return e.Code.String() }

func codeErr(c Code) error { return Error{Code: c} }

// Ack is the asynchronous outcome delivered to Update/Get/Delete
// callbacks.
type Ack struct {
	Status   inflight.Status
	Document []byte
	Code     string
	Message  string
}

// Callback receives the ack for exactly one published request.
type Callback func(verb topic.Verb, ack Ack, callbackContext any)

// Config collects everything needed to build a Client.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string

	QoS                      int
	ConnectTimeout           time.Duration
	SubscribeTimeout         time.Duration
	MaxInFlightMessage       int
	MaxShadowPropertyHandler int

	InsecureSkipVerify bool
	CertFile, KeyFile  string

	// Metrics, if set, receives per-client counters. Optional.
	Metrics *metrics.Metrics
}

func (c *Config) setDefaults() {
	if c.QoS == 0 {
		c.QoS = 1
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SubscribeTimeout == 0 {
		c.SubscribeTimeout = 5 * time.Second
	}
	if c.MaxInFlightMessage == 0 {
		c.MaxInFlightMessage = 16
	}
	if c.MaxShadowPropertyHandler == 0 {
		c.MaxShadowPropertyHandler = 16
	}
}

// Client is a single device's shadow connection. The zero value is not
// usable; construct with Create.
type Client struct {
	deviceName string
	cfg        Config

	contract *topic.Contract
	inflight *inflight.Table
	deltas   *delta.Registry
	dispatch *dispatch.Dispatcher
	transp   transport.Client
	metrics  *metrics.Metrics

	reg *registry.Registry
}

var _ registry.Reapable = (*Client)(nil)

// Create constructs a client for deviceName against broker, with user/pass
// credentials. The transport is not started; call Connect. reg, if
// non-nil, is the process-wide client registry the new Client registers
// itself into, so the process-wide reaper has one enumeration root to walk.
func Create(reg *registry.Registry, deviceName, broker, user, pass string, cfg Config) (*Client, error) {
	if deviceName == "" || broker == "" {
		return nil, codeErr(BadArgument)
	}
	cfg.setDefaults()
	cfg.Broker, cfg.Username, cfg.Password = broker, user, pass

	transp, err := pahomqtt.New(&pahomqtt.Config{
		BrokerURL:          broker,
		ClientID:           cfg.ClientID,
		Username:           user,
		Password:           pass,
		ConnectTimeout:     cfg.ConnectTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CertFile:           cfg.CertFile,
		KeyFile:            cfg.KeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	return newClient(reg, deviceName, transp, cfg)
}

// newClient builds a Client around an already-constructed transport. It is
// Create's tail end, split out so tests can drive the engine against a
// fake transport.Client instead of a real broker connection.
func newClient(reg *registry.Registry, deviceName string, transp transport.Client, cfg Config) (*Client, error) {
	cfg.setDefaults()
	c := &Client{
		deviceName: deviceName,
		cfg:        cfg,
		contract:   topic.New(deviceName),
		inflight:   inflight.New(cfg.MaxInFlightMessage),
		deltas:     delta.New(cfg.MaxShadowPropertyHandler),
		transp:     transp,
		metrics:    cfg.Metrics,
		reg:        reg,
	}

	c.dispatch = dispatch.New(deviceName, c.contract, c.inflight, c.deltas, publisherFunc(c.publishRaw), c.beginConnect, c.beginSubscribe, cfg.Metrics)
	transp.OnConnectionLost(func() {
		if c.metrics != nil {
			c.metrics.ReconnectsTotal.Inc()
		}
		c.dispatch.OnConnectionLost()
	})

	if reg != nil {
		if err := reg.Add(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type publisherFunc func(ctx context.Context, topic string, payload []byte) error

func (f publisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

func (c *Client) publishRaw(ctx context.Context, t string, payload []byte) error {
	return c.transp.Publish(ctx, t, c.cfg.QoS, payload)
}

// Connect drives the client through CONNECTING and SUBSCRIBING to READY,
// or returns the first transport error observed along the way. Call it
// again after a connection loss (Ready reports false, RequireReady
// returns NotConnected) to resume — the client does not re-enter READY on
// its own even though the underlying transport reconnects automatically.
func (c *Client) Connect(ctx context.Context) error {
	return c.dispatch.BeginConnect(ctx)
}

func (c *Client) beginConnect(ctx context.Context) error {
	if err := c.transp.Start(ctx); err != nil {
		return err
	}
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	return c.transp.AwaitConnection(connectCtx)
}

func (c *Client) beginSubscribe(ctx context.Context) error {
	subCtx, cancel := context.WithTimeout(ctx, c.cfg.SubscribeTimeout)
	defer cancel()
	return c.transp.SubscribeMany(subCtx, c.contract.Subscriptions(), c.cfg.QoS, c.onMessage)
}

func (c *Client) onMessage(ctx context.Context, t string, payload []byte) {
	c.dispatch.HandleInbound(ctx, t, payload)
}

// Update publishes reported on <prefix>/update, firing cb exactly once
// with the outcome.
func (c *Client) Update(ctx context.Context, reported json.RawMessage, cb Callback, callbackContext any, timeout time.Duration) error {
	if cb == nil {
		return codeErr(NullPointer)
	}
	return c.send(ctx, topic.Update, func(requestID string) ([]byte, error) {
		return wire.EncodeUpdate(reported, requestID)
	}, cb, callbackContext, timeout)
}

// Get requests the full shadow document on <prefix>/get.
func (c *Client) Get(ctx context.Context, cb Callback, callbackContext any, timeout time.Duration) error {
	if cb == nil {
		return codeErr(NullPointer)
	}
	return c.send(ctx, topic.Get, func(requestID string) ([]byte, error) {
		return wire.EncodeRequestID(requestID)
	}, cb, callbackContext, timeout)
}

// Delete requests shadow deletion on <prefix>/delete.
func (c *Client) Delete(ctx context.Context, cb Callback, callbackContext any, timeout time.Duration) error {
	if cb == nil {
		return codeErr(NullPointer)
	}
	return c.send(ctx, topic.Delete, func(requestID string) ([]byte, error) {
		return wire.EncodeRequestID(requestID)
	}, cb, callbackContext, timeout)
}

// send implements the contract common to every *_send path: insert into
// the in-flight table before publishing, so a reply that outraces the
// publish call still finds its slot. If publish fails after insertion the
// slot is left in place; the caller is notified by timeout rather than by
// a rollback that could race a genuine reply that already arrived.
func (c *Client) send(ctx context.Context, verb topic.Verb, encode func(requestID string) ([]byte, error), cb Callback, callbackContext any, timeout time.Duration) error {
	if err := c.dispatch.RequireReady(); err != nil {
		return codeErr(NotConnected)
	}

	reqTopic, ok := c.contract.RequestTopic(verb)
	if !ok {
		return codeErr(BadArgument)
	}

	requestID := wire.NewRequestID()
	payload, err := encode(requestID)
	if err != nil {
		return codeErr(BadArgument)
	}

	tableCb := func(v topic.Verb, ack inflight.Ack, cbCtx any) {
		c.recordResult(verb, ack.Status)
		cb(v, Ack{Status: ack.Status, Document: ack.Document, Code: ack.Code, Message: ack.Message}, cbCtx)
	}

	if err := c.inflight.Insert(requestID, verb, tableCb, callbackContext, timeout); err != nil {
		return codeErr(TooManyInFlightMessage)
	}
	if c.metrics != nil {
		c.metrics.InFlightOccupied.WithLabelValues(c.deviceName).Set(float64(c.inflight.Len()))
	}

	if err := c.publishRaw(ctx, reqTopic, payload); err != nil {
		log.Error(err, "publish failed, in-flight slot left to time out", "device", c.deviceName, "topic", reqTopic, "requestId", requestID)
	}
	return nil
}

// recordResult is invoked from inside the in-flight table's callback,
// with its mutex held (see inflight.Table's doc comment) — it must never
// call back into c.inflight, only touch independent state like metrics.
func (c *Client) recordResult(verb topic.Verb, status inflight.Status) {
	if c.metrics == nil {
		return
	}
	var result string
	switch status {
	case inflight.Accepted:
		result = "accepted"
	case inflight.Rejected:
		result = "rejected"
	case inflight.Timeout:
		result = "timeout"
	}
	c.metrics.RequestsTotal.WithLabelValues(string(verb), result).Inc()
}

// RegisterDelta appends a handler to the delta registry. key == "" means
// "receive the whole desired object"; otherwise the handler fires only
// when that key is present in a given delta's desired object. Requires
// the client to be connected and subscribed.
func (c *Client) RegisterDelta(key string, cb delta.Callback) error {
	if cb == nil {
		return codeErr(NullPointer)
	}
	if err := c.dispatch.RequireReady(); err != nil {
		return codeErr(NotConnected)
	}
	if err := c.deltas.Register(key, cb); err != nil {
		return codeErr(TooManyShadowPropertyHandler)
	}
	return nil
}

// Destroy removes the client from its registry and disconnects the
// transport. In-flight callbacks are not synthesized; any pending request
// simply never completes. Destroy must not be called concurrently with
// itself on the same Client.
func (c *Client) Destroy(ctx context.Context) {
	if c.reg != nil {
		c.reg.Remove(c)
	}
	c.transp.Disconnect(ctx)
}

// ReapTimeouts satisfies registry.Reapable. It is invoked by a
// registry.Reaper tick, once per client, with the registry's mutex held.
func (c *Client) ReapTimeouts() {
	n := c.inflight.Reap(time.Now())
	if n > 0 && c.metrics != nil {
		c.metrics.InFlightOccupied.WithLabelValues(c.deviceName).Set(float64(c.inflight.Len()))
	}
}

// Name, InFlightLen and Ready satisfy pkg/introspect.Inspectable.
func (c *Client) Name() string     { return c.deviceName }
func (c *Client) InFlightLen() int { return c.inflight.Len() }
func (c *Client) Ready() bool      { return c.dispatch.Ready() }
