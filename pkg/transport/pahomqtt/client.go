// Package pahomqtt adapts github.com/eclipse/paho.golang/autopaho to the
// transport.Client contract the shadow engine depends on.
package pahomqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/transport"
)

type client struct {
	cfg *Config
	cm  *autopaho.ConnectionManager

	mu          sync.Mutex
	handler     transport.MessageHandler
	topics      []string
	topicQoS    int
	onConnLost  func()
	tlsConfig   *tls.Config
	certWatcher *certWatcher
}

var _ transport.Client = (*client)(nil)

// New creates a transport.Client backed by autopaho. The connection is not
// started until Start is called.
func New(cfg *Config) (transport.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport config is required")
	}
	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	c := &client{cfg: cfg}
	c.tlsConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CertFile != "" {
		w, err := newCertWatcher(cfg.CertFile, cfg.KeyFile, c.reloadCert)
		if err != nil {
			return nil, fmt.Errorf("cert watcher: %w", err)
		}
		c.certWatcher = w
		c.reloadCert()
	}
	return c, nil
}

func (c *client) Start(ctx context.Context) error {
	c.mu.Lock()
	started := c.cm != nil
	c.mu.Unlock()
	if started {
		// autopaho's ConnectionManager reconnects on its own; a second
		// Start (e.g. from a dispatcher re-running BeginConnect after
		// OnConnectionLost) returns at once rather than standing up a
		// second one, and AwaitConnection then waits on the existing one.
		return nil
	}

	brokerURL, _ := url.Parse(c.cfg.BrokerURL) // already validated

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        c.tlsConfig,
		ClientConfig: paho.ClientConfig{
			ClientID:      c.cfg.ClientID,
			OnClientError: c.onClientError,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.router,
			},
		},
		OnConnectionUp: c.onConnectionUp,
		OnConnectError: c.onConnectError,
	}

	log.Info("starting MQTT transport", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()

	if c.certWatcher != nil {
		go c.certWatcher.run(ctx)
	}
	return nil
}

func (c *client) Disconnect(ctx context.Context) {
	if c.cm != nil {
		_ = c.cm.Disconnect(ctx)
	}
	if c.certWatcher != nil {
		c.certWatcher.stop()
	}
	log.Info("MQTT transport disconnected")
}

func (c *client) Publish(ctx context.Context, topic string, qos int, payload []byte) error {
	if c.cm == nil {
		return fmt.Errorf("transport not started")
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Payload: payload,
	})
	return err
}

func (c *client) SubscribeMany(ctx context.Context, topics []string, qos int, handler transport.MessageHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.topics = append([]string(nil), topics...)
	c.topicQoS = qos
	c.mu.Unlock()

	if c.cm == nil {
		return fmt.Errorf("transport not started")
	}
	return c.subscribeAll(ctx)
}

func (c *client) subscribeAll(ctx context.Context) error {
	c.mu.Lock()
	topics, qos := c.topics, c.topicQoS
	c.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}

	subs := make([]paho.SubscribeOptions, len(topics))
	for i, t := range topics {
		subs[i] = paho.SubscribeOptions{Topic: t, QoS: byte(qos)}
	}
	_, err := c.cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs})
	return err
}

func (c *client) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return fmt.Errorf("transport not started")
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *client) OnConnectionLost(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnLost = fn
}

func (c *client) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	log.Info("MQTT connection established")
	if err := c.subscribeAll(context.Background()); err != nil {
		log.Error(err, "failed to (re-)subscribe after connect")
	}
}

func (c *client) onConnectError(err error) {
	log.Error(err, "MQTT connection attempt failed, retrying")
}

func (c *client) onClientError(err error) {
	log.Error(err, "MQTT client internal error")
	c.mu.Lock()
	cb := c.onConnLost
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// router hands every inbound publish to the registered handler. The shadow
// engine's own dispatcher does the topic classification; this is a thin,
// allocation-light adapter over paho's callback shape.
func (c *client) router(p paho.PublishReceived) (bool, error) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()

	if h != nil {
		h(context.Background(), p.Packet.Topic, p.Packet.Payload)
	}
	return true, nil
}

func (c *client) reloadCert() {
	cert, err := tls.LoadX509KeyPair(c.cfg.CertFile, c.cfg.KeyFile)
	if err != nil {
		log.Error(err, "failed to reload client certificate")
		return
	}
	c.mu.Lock()
	c.tlsConfig.Certificates = []tls.Certificate{cert}
	c.mu.Unlock()
	log.Info("client certificate reloaded", "certFile", c.cfg.CertFile)
}
