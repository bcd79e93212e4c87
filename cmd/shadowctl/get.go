package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	shadow "github.com/baidu-iot/shadow-go"
	"github.com/baidu-iot/shadow-go/inflight"
	"github.com/baidu-iot/shadow-go/topic"
)

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Fetch the current shadow document",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := connectFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			defer client.Destroy(ctx)

			var wg sync.WaitGroup
			wg.Add(1)

			var ack shadow.Ack
			err = client.Get(ctx, func(_ topic.Verb, a shadow.Ack, _ any) {
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
}

func printAck(ack shadow.Ack) error {
	switch ack.Status {
	case inflight.Accepted:
		fmt.Println(string(ack.Document))
	case inflight.Rejected:
		return fmt.Errorf("rejected: %s: %s", ack.Code, ack.Message)
	default:
		return fmt.Errorf("request timed out")
	}
	return nil
}
