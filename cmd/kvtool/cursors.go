package main

import (
	"fmt"

	"github.com/fystack/payment-gateway/pkg/store/cursorstore"
	"github.com/spf13/cobra"
)

func cursorsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursors",
		Short: "List saved chain cursors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			cursors, err := cursorstore.New(kv).List(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), cursors)
		},
	}
	cmd.AddCommand(cursorResetCmd(opts))
	return cmd
}

// A reset chain resumes from its configured start (or head when from_latest)
// at the next chain manager restart of that chain.
func cursorResetCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset <chain>",
		Short: "Delete the saved cursor of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete cursor of %s without --force", args[0])
			}
			kv, err := opts.openKV()
			if err != nil {
				return err
			}
			defer kv.Close()

			if err := cursorstore.New(kv).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cursor of %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm the deletion")
	return cmd
}
