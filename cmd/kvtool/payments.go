package main

import (
	"fmt"

	"github.com/fystack/payment-gateway/pkg/store/paymentstore"
	"github.com/spf13/cobra"
)

func paymentsCmd(opts *options) *cobra.Command {
	var filter paymentstore.Filter
	cmd := &cobra.Command{
		Use:   "payments <account-id>",
		Short: "List ledger records of a merchant account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			records, err := paymentstore.New(kv).List(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&filter.PaymentID, "payment", "", "Only this payment id")
	cmd.Flags().StringVar(&filter.Blockchain, "chain", "", "Only this blockchain")
	return cmd
}

func deliveriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deliveries [payment-identity]",
		Short: "Show stored webhook delivery results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			store := paymentstore.New(kv)
			if len(args) == 0 {
				all, err := store.ListDeliveries(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), all)
			}

			result, err := store.GetDelivery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("no delivery recorded for %s", args[0])
			}
			return opts.print(cmd.OutOrStdout(), result)
		},
	}
}
