package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	asynqTransport "github.com/kailas-cloud/skuindex/internal/transport/asynq"
)

func newNotifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <product-id>",
		Short: "Publish a product:changed event",
		Long: `Publish a product:changed event to the queue configured under events.
A server with events.enabled consumes it and re-indexes the product.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			if cfg.Events.RedisAddr == "" {
				return errors.New("events.redis_addr is not configured")
			}

			pub := asynqTransport.NewPublisher(asynqTransport.Config{
				RedisAddr: cfg.Events.RedisAddr,
				Password:  cfg.Events.Password,
				Queue:     cfg.Events.Queue,
			})
			defer func() { _ = pub.Close() }()

			id, err := pub.Publish(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s as task %s\n", args[0], id)
			return nil
		},
	}
}
