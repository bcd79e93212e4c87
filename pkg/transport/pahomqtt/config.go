package pahomqtt

import (
	"errors"
	"net/url"
	"time"
)

// Config holds the configuration for creating a new paho-backed transport
// client.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds. Default 60.
	KeepAlive uint16

	// ConnectTimeout for the initial connection. Default 5s.
	ConnectTimeout time.Duration

	// CleanStart indicates whether to start a clean MQTT session. Device
	// shadow clients generally want false, to receive anything queued
	// while disconnected.
	CleanStart bool

	// InsecureSkipVerify disables TLS certificate verification. Only ever
	// appropriate against a broker with a self-signed or test certificate.
	InsecureSkipVerify bool

	// CertFile, if set, is a PEM client certificate reloaded on disk
	// change (see certwatch.go). Requires KeyFile.
	CertFile string
	KeyFile  string
}

func setDefaults(cfg *Config) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
}

// Validate checks the configuration for obvious caller errors.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	if _, err := url.Parse(c.BrokerURL); err != nil {
		return err
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert file and key file must be set together")
	}
	return nil
}
