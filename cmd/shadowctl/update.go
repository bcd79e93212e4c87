package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	shadow "github.com/baidu-iot/shadow-go"
	"github.com/baidu-iot/shadow-go/topic"
)

func newUpdateCommand() *cobra.Command {
	var reportedJSON string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Publish a reported-state update",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(reportedJSON)) {
				return fmt.Errorf("--reported must be valid JSON")
			}

			ctx := context.Background()
			client, err := connectFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			defer client.Destroy(ctx)

			var wg sync.WaitGroup
			wg.Add(1)

			var ack shadow.Ack
			err = client.Update(ctx, json.RawMessage(reportedJSON), func(_ topic.Verb, a shadow.Ack, _ any) {
				ack = a
				wg.Done()
			}, nil, requestTimeout(cmd))
			if err != nil {
				return err
			}

			wg.Wait()
			return printAck(ack)
		},
	}

	cmd.Flags().StringVar(&reportedJSON, "reported", "{}", "Reported state as a JSON object")
	return cmd
}
