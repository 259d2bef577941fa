package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fystack/payment-gateway/pkg/events"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/spf13/cobra"
)

func eventsCmd(opts *options) *cobra.Command {
	var consumer string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail payment and error events from NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Services.Nats.Enabled() {
				return fmt.Errorf("nats is not configured")
			}

			nc, err := infra.GetNATSConnection(cfg.Services.Nats)
			if err != nil {
				return err
			}
			defer nc.Close()

			subjects := events.Subjects(cfg.Services.Nats.SubjectPrefix)
			mq, err := infra.NewNATsMessageQueueManager(cmd.Context(), events.StreamName, subjects, nc)
			if err != nil {
				return err
			}
			queue, err := mq.NewMessageQueue(cmd.Context(), consumer, subjects[0])
			if err != nil {
				return err
			}
			defer queue.Close()

			out := cmd.OutOrStdout()
			err = queue.Dequeue(func(message []byte) error {
				var evt events.GatewayEvent
				if err := json.Unmarshal(message, &evt); err != nil {
					return fmt.Errorf("%w: %v", infra.ErrPermament, err)
				}
				return opts.print(out, evt)
			})
			if err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer", "kvtool", "Durable consumer name")
	return cmd
}
