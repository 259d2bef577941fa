package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

type options struct {
	configPath string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "kvtool",
		Short:         "Inspect and repair the payment gateway KV store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "yaml" {
				return fmt.Errorf("unsupported output %q (json|yaml)", opts.output)
			}
			logger.Init(&logger.Options{
				Level:      slog.LevelWarn,
				Writer:     os.Stderr,
				TimeFormat: time.RFC3339,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "Path to config file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format (json|yaml)")

	root.AddCommand(cursorsCmd(opts))
	root.AddCommand(notificationsCmd(opts))
	root.AddCommand(paymentsCmd(opts))
	root.AddCommand(deliveriesCmd(opts))
	root.AddCommand(eventsCmd(opts))
	root.AddCommand(migrateCmd(opts))
	return root
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

// openKV opens the store named in the config. The caller closes it.
func (o *options) openKV() (infra.KVStore, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return kvstore.NewFromConfig(cfg.Services.KVS)
}

func (o *options) print(w io.Writer, v any) error {
	return render(w, o.output, v)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		// go through json so field names follow the json tags
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
