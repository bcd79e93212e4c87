package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/baidu-iot/shadow-go/pkg/introspect"
	"github.com/baidu-iot/shadow-go/registry"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List clients registered in this process, with their in-flight occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := uitable.New()
			table.AddRow("DEVICE", "READY", "IN-FLIGHT")

			processRegistry.Iterate(func(c registry.Reapable) {
				insp, ok := c.(introspect.Inspectable)
				if !ok {
					return
				}
				table.AddRow(insp.Name(), insp.Ready(), insp.InFlightLen())
			})

			if len(table.Rows) == 1 {
				fmt.Println("no clients registered in this process")
				return nil
			}
			fmt.Println(table)
			return nil
		},
	}
}
