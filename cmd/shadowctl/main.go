// Command shadowctl is a small demo CLI over the shadow client: connect to
// a device's shadow, push a reported update, fetch the current document,
// list this process's clients with a uitable, or serve introspection
// endpoints.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baidu-iot/shadow-go/log"
	"github.com/baidu-iot/shadow-go/pkg/config"
)

func main() {
	reaper := newProcessReaper()
	go reaper.Run()
	defer reaper.Stop()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// reaperTick is how often the process-wide reaper sweeps every client in
// processRegistry for in-flight requests whose timeout has elapsed.
// Nothing else drives this — a request with no reply and no sweep simply
// stays in-flight forever.
const reaperTick = time.Second

// cfgOptions and logOptions are bound to flags on the root command and
// read by every subcommand. configFile, when set, is loaded over the
// flag-derived cfgOptions in PersistentPreRunE.
var (
	cfgOptions = config.NewOptions()
	logOptions = log.NewOptions()
	configFile string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shadowctl",
		Short: "Inspect and drive a device shadow over MQTT",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Init(logOptions)

			if configFile == "" {
				return nil
			}
			loaded, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load --config: %w", err)
			}
			cfgOptions = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to a YAML/JSON/TOML config file. When set, it replaces the flags below.")
	cmd.PersistentFlags().String("device", "", "Device name")
	cmd.PersistentFlags().Duration("timeout", 0, "Request timeout (defaults to 5s)")

	cfgOptions.AddFlags(cmd.PersistentFlags())
	logOptions.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newGetCommand(), newUpdateCommand(), newStatusCommand(), newServeCommand())
	return cmd
}
