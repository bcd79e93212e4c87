// Package config carries the tunables a shadow client needs: timeouts,
// QoS, the three capacity caps, and broker connection details. One
// Options struct per concern, AddFlags binding it to a pflag.FlagSet,
// Validate checking caller-supplied values before anything is wired up.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Options holds everything needed to construct a shadow.Client.
type Options struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SubscribeTimeout time.Duration `json:"subscribe-timeout" mapstructure:"subscribe-timeout"`
	QoS              int           `json:"qos" mapstructure:"qos"`

	MaxClient                int `json:"max-client" mapstructure:"max-client"`
	MaxInFlightMessage       int `json:"max-in-flight-message" mapstructure:"max-in-flight-message"`
	MaxShadowPropertyHandler int `json:"max-shadow-property-handler" mapstructure:"max-shadow-property-handler"`

	InsecureSkipVerify bool   `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`
	CertFile           string `json:"cert-file" mapstructure:"cert-file"`
	KeyFile            string `json:"key-file" mapstructure:"key-file"`

	// WatchEnabled turns on viper's fsnotify-backed config file watch in
	// shadowctl serve. A changed file is validated and logged; the new
	// settings are not applied to the running client.
	WatchEnabled bool `json:"watch-enabled" mapstructure:"watch-enabled"`
}

// NewOptions returns an Options populated with the package defaults.
func NewOptions() *Options {
	return &Options{
		Broker:                   "tls://iot.baidu.com:1883",
		KeepAlive:                60 * time.Second,
		ConnectTimeout:           5 * time.Second,
		SubscribeTimeout:         5 * time.Second,
		QoS:                      1,
		MaxClient:                64,
		MaxInFlightMessage:       16,
		MaxShadowPropertyHandler: 16,
	}
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit client ID (optional, generated if empty).")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT keep-alive interval. Not passed to the transport, which uses its own 60s default.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing the MQTT connection.")
	fs.DurationVar(&o.SubscribeTimeout, "mqtt.subscribe-timeout", o.SubscribeTimeout, "Timeout for the initial subscribe after connect.")
	fs.IntVar(&o.QoS, "mqtt.qos", o.QoS, "QoS level used for publish and subscribe (the shadow protocol requires 1).")

	fs.IntVar(&o.MaxClient, "shadow.max-client", o.MaxClient, "Maximum number of concurrently registered shadow clients. shadowctl's own registry is fixed at 64 and does not read it.")
	fs.IntVar(&o.MaxInFlightMessage, "shadow.max-in-flight-message", o.MaxInFlightMessage, "Maximum outstanding requests per client.")
	fs.IntVar(&o.MaxShadowPropertyHandler, "shadow.max-shadow-property-handler", o.MaxShadowPropertyHandler, "Maximum delta handlers per client.")

	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skip TLS certificate verification. Testing only.")
	fs.StringVar(&o.CertFile, "mqtt.cert-file", o.CertFile, "PEM client certificate, reloaded on change.")
	fs.StringVar(&o.KeyFile, "mqtt.key-file", o.KeyFile, "PEM client key, paired with cert-file.")

	fs.BoolVar(&o.WatchEnabled, "config.watch", o.WatchEnabled, "Watch the config file for changes and hot-reload.")
}

// Validate checks the options for obvious caller errors before a Client is
// built from them.
func (o *Options) Validate() []error {
	var errs []error
	if o.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker is required"))
	}
	if o.QoS != 0 && o.QoS != 1 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0 or 1, got %d", o.QoS))
	}
	if o.MaxClient <= 0 {
		errs = append(errs, fmt.Errorf("shadow.max-client must be positive"))
	}
	if o.MaxInFlightMessage <= 0 {
		errs = append(errs, fmt.Errorf("shadow.max-in-flight-message must be positive"))
	}
	if o.MaxShadowPropertyHandler <= 0 {
		errs = append(errs, fmt.Errorf("shadow.max-shadow-property-handler must be positive"))
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		errs = append(errs, fmt.Errorf("cert-file and key-file must be set together"))
	}
	return errs
}
