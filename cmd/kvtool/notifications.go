package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fystack/payment-gateway/internal/notification"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/fystack/payment-gateway/pkg/store/notificationstore"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// pendingNotification adds the age to a queued record for display.
type pendingNotification struct {
	types.NotificationRecord
	Age string `json:"age"`
}

func notificationsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications [type]",
		Short: "List pending notifications, optionally of one type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notificationTypes := enum.AllNotificationTypes
			if len(args) == 1 {
				t := enum.NotificationType(args[0])
				if !lo.Contains(enum.AllNotificationTypes, t) {
					return fmt.Errorf("unknown notification type %q", args[0])
				}
				notificationTypes = []enum.NotificationType{t}
			}

			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			pending, err := listPending(cmd.Context(), notificationstore.New(kv), notificationTypes, time.Now())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), pending)
		},
	}
	cmd.AddCommand(deadLettersCmd(opts))
	cmd.AddCommand(supportTicketCmd(opts))
	return cmd
}

func listPending(ctx context.Context, queue notificationstore.Store, notificationTypes []enum.NotificationType, now time.Time) (map[enum.NotificationType][]pendingNotification, error) {
	out := make(map[enum.NotificationType][]pendingNotification, len(notificationTypes))
	for _, t := range notificationTypes {
		records, err := queue.List(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = lo.Map(records, func(r types.NotificationRecord, _ int) pendingNotification {
			return pendingNotification{NotificationRecord: r, Age: r.Age(now).Truncate(time.Second).String()}
		})
	}
	return out, nil
}

func deadLettersCmd(opts *options) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "Show expired notifications captured in redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Services.Redis.Enabled() {
				return fmt.Errorf("redis is not configured")
			}
			client, err := infra.NewRedisClient(cmd.Context(), cfg.Services.Redis.URL, cfg.Services.Redis.Password)
			if err != nil {
				return err
			}
			defer client.Close()

			raw, err := client.LRange(cmd.Context(), constant.DeadLetterListKey, 0, limit-1)
			if err != nil {
				return err
			}
			records := make([]types.NotificationRecord, 0, len(raw))
			for _, s := range raw {
				var rec types.NotificationRecord
				if err := json.Unmarshal([]byte(s), &rec); err != nil {
					return fmt.Errorf("decode dead letter: %w", err)
				}
				records = append(records, rec)
			}
			return opts.print(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 50, "Most recent entries to show")
	return cmd
}

func supportTicketCmd(opts *options) *cobra.Command {
	var ticket types.SupportTicket
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Queue a support ticket for the support mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			rec, err := notification.EnqueueSupportTicket(cmd.Context(), notificationstore.New(kv), ticket)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&ticket.AccountID, "account", "", "Merchant account id")
	cmd.Flags().StringVar(&ticket.Email, "email", "", "Reply address")
	cmd.Flags().StringVar(&ticket.Subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&ticket.Message, "message", "", "Ticket body")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
