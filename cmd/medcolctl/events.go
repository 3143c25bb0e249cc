package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/dispensing-api/pkg/messaging"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/redis"
)

func eventsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect relayed document and medication events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print events published on the broker channel until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			var broker messaging.Broker
			if cfg.Broker.Kind == "rabbitmq" {
				broker, err = rabbitmq.NewRabbitMQBroker(cfg.Broker.ToRabbitMQConfig(), &log.Logger)
			} else {
				broker, err = redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
			}
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			messages, err := broker.Subscribe(ctx, cfg.Broker.Channel)
			if err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-messages:
					if !ok {
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(msg))
				}
			}
		},
	})
	return cmd
}
