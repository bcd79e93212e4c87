package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/config"
	"github.com/baidu-iot/shadow-go/pkg/introspect"
	"github.com/baidu-iot/shadow-go/pkg/metrics"
)

// newServeCommand connects one device and then blocks serving its
// introspection HTTP endpoints until interrupted. It's the long-running
// counterpart to the one-shot get/update/status commands.
func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect a device and serve /healthz, /readyz, /clients and /metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			client, err := connectWithMetrics(ctx, cmd, m)
			if err != nil {
				return err
			}
			defer client.Destroy(context.Background())

			if configFile != "" && cfgOptions.WatchEnabled {
				// The broker connection itself isn't re-dialed on a config
				// change — that would tear down in-flight requests — but a
				// watch lets an operator see a bad edit rejected immediately
				// instead of on the next restart.
				if err := config.Watch(configFile, func(o *config.Options) {
					log.Info("config file changed, new settings take effect on next restart", "broker", o.Broker)
				}); err != nil {
					log.Warn("could not start config watch", "path", configFile, "err", err)
				}
			}

			// The process-wide reaper is already running (see main()); serve
			// only needs to stand up the HTTP side and block on shutdown.
			srv := introspect.New(addr, processRegistry, m)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })

			log.Info("shadowctl serving", "addr", addr, "device", client.Name())
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "listen", ":8080", "Introspection server listen address")
	return cmd
}
