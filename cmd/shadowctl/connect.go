package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	shadow "github.com/baidu-iot/shadow-go"
	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/metrics"
	"github.com/baidu-iot/shadow-go/registry"
)

var processRegistry = registry.New(64)

// newProcessReaper builds the single background reaper for processRegistry.
// shadowctl is a one-shot demo CLI, not a long-lived service, but it still
// carries the reaper: get and update block until their callback fires, and
// without a reaper a request that gets no reply would never time out.
func newProcessReaper() *registry.Reaper {
	return registry.NewReaper(processRegistry, reaperTick)
}

func connectFromFlags(ctx context.Context, cmd *cobra.Command) (*shadow.Client, error) {
	return connectWithMetrics(ctx, cmd, nil)
}

// connectWithMetrics is connectFromFlags plus an optional metrics bundle,
// split out for the serve command, which needs the bundle to also hand to
// the introspection server's /metrics route. Broker, credentials and the
// capacity/timeout tunables all come from cfgOptions, populated either from
// --config or from the mqtt.*/shadow.* flags bound in main.go.
func connectWithMetrics(ctx context.Context, cmd *cobra.Command, m *metrics.Metrics) (*shadow.Client, error) {
	device, _ := cmd.Flags().GetString("device")
	if device == "" {
		return nil, fmt.Errorf("--device is required")
	}

	client, err := shadow.Create(processRegistry, device, cfgOptions.Broker, cfgOptions.Username, cfgOptions.Password, shadow.Config{
		ClientID:                 cfgOptions.ClientID,
		QoS:                      cfgOptions.QoS,
		ConnectTimeout:           cfgOptions.ConnectTimeout,
		SubscribeTimeout:         cfgOptions.SubscribeTimeout,
		MaxInFlightMessage:       cfgOptions.MaxInFlightMessage,
		MaxShadowPropertyHandler: cfgOptions.MaxShadowPropertyHandler,
		InsecureSkipVerify:       cfgOptions.InsecureSkipVerify,
		CertFile:                 cfgOptions.CertFile,
		KeyFile:                  cfgOptions.KeyFile,
		Metrics:                  m,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	log.Info("connecting", "device", device, "broker", cfgOptions.Broker)
	connectCtx, cancel := context.WithTimeout(ctx, cfgOptions.ConnectTimeout+5*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return client, nil
}

func requestTimeout(cmd *cobra.Command) time.Duration {
	d, _ := cmd.Flags().GetDuration("timeout")
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
