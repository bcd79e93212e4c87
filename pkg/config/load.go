package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/baidu-iot/shadow-go/log"
)

// Load reads Options from path (YAML, JSON or TOML, by extension) via
// viper, applying NewOptions' defaults for anything the file omits. The
// teacher's go.mod carries both viper and fsnotify without ever reading a
// config file from disk; this is where that capability actually gets used.
func Load(path string) (*Options, error) {
	v := viper.New()
	v.SetConfigFile(path)

	opts := NewOptions()
	setViperDefaults(v, opts)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs)
	}
	return opts, nil
}

// Watch installs a viper file watch (fsnotify underneath) that calls
// onChange with the freshly decoded Options whenever path is rewritten.
// Decode errors are logged and the previous Options are left in place,
// since a half-written file is a transient, not a fatal, state.
func Watch(path string, onChange func(*Options)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		opts := NewOptions()
		if err := v.Unmarshal(opts); err != nil {
			log.Error(err, "config reload produced invalid options, keeping previous", "path", e.Name)
			return
		}
		if errs := opts.Validate(); len(errs) > 0 {
			log.Error(fmt.Errorf("%v", errs), "config reload failed validation, keeping previous", "path", e.Name)
			return
		}
		log.Info("config reloaded", "path", e.Name)
		onChange(opts)
	})
	v.WatchConfig()
	return nil
}

func setViperDefaults(v *viper.Viper, opts *Options) {
	v.SetDefault("broker", opts.Broker)
	v.SetDefault("keep-alive", opts.KeepAlive)
	v.SetDefault("connect-timeout", opts.ConnectTimeout)
	v.SetDefault("subscribe-timeout", opts.SubscribeTimeout)
	v.SetDefault("qos", opts.QoS)
	v.SetDefault("max-client", opts.MaxClient)
	v.SetDefault("max-in-flight-message", opts.MaxInFlightMessage)
	v.SetDefault("max-shadow-property-handler", opts.MaxShadowPropertyHandler)
}
