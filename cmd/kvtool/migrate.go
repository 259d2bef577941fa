package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	to       string
	prefixes []string
	verify   bool
	dryRun   bool
}

// MigrationSummary is printed once a migration finishes.
type MigrationSummary struct {
	Total    int      `json:"total"`
	Copied   int      `json:"copied"`
	DryRun   bool     `json:"dry_run"`
	Prefixes []string `json:"prefixes"`
	Duration string   `json:"duration"`
}

func migrateCmd(opts *options) *cobra.Command {
	mo := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy gateway keys from the configured store into another store",
		Long: `Copies every key under the gateway prefixes from the store named in --config
into the store described by --to, a YAML file holding a kvstore section:

  type: consul
  consul:
    address: 127.0.0.1:8500
    folder: gateway`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dstCfg, err := loadKVSConfig(mo.to)
			if err != nil {
				return err
			}

			src, err := opts.openKV()
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := kvstore.NewFromConfig(*dstCfg)
			if err != nil {
				return fmt.Errorf("open destination store: %w", err)
			}
			defer dst.Close()

			start := time.Now()
			total, copied, err := migrate(cmd.ErrOrStderr(), src, dst, mo.prefixes, mo.verify, mo.dryRun)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), MigrationSummary{
				Total:    total,
				Copied:   copied,
				DryRun:   mo.dryRun,
				Prefixes: mo.prefixes,
				Duration: time.Since(start).Round(time.Millisecond).String(),
			})
		},
	}
	cmd.Flags().StringVar(&mo.to, "to", "", "YAML file describing the destination kvstore")
	cmd.Flags().StringSliceVar(&mo.prefixes, "prefix", constant.AllKeyPrefixes, "Key prefixes to copy")
	cmd.Flags().BoolVar(&mo.verify, "verify", false, "Read every key back after writing it")
	cmd.Flags().BoolVar(&mo.dryRun, "dry-run", false, "List keys without writing")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func loadKVSConfig(path string) (*config.KVSConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading destination file %q: %w", path, err)
	}
	var cfg config.KVSConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing destination file: %w", err)
	}
	if cfg.Type == "" {
		return nil, fmt.Errorf("destination type is required")
	}
	return &cfg, nil
}

func migrate(progress io.Writer, src, dst infra.KVStore, prefixes []string, verify, dryRun bool) (int, int, error) {
	var pairs []*infra.KVPair
	for _, prefix := range prefixes {
		found, err := src.List(prefix)
		if err != nil {
			return 0, 0, fmt.Errorf("listing keys with prefix %q: %w", prefix, err)
		}
		fmt.Fprintf(progress, "%-22s %d keys\n", prefix, len(found))
		pairs = append(pairs, found...)
	}

	total := len(pairs)
	if total == 0 || dryRun {
		return total, 0, nil
	}

	copied := 0
	for i, kv := range pairs {
		if err := dst.Set(kv.Key, string(kv.Value)); err != nil {
			return total, copied, fmt.Errorf("setting key %q: %w", kv.Key, err)
		}
		copied++

		if verify {
			got, err := dst.Get(kv.Key)
			if err != nil {
				return total, copied, fmt.Errorf("verifying key %q: %w", kv.Key, err)
			}
			if got != string(kv.Value) {
				return total, copied, fmt.Errorf("verification failed for key %q", kv.Key)
			}
		}

		if (i+1)%100 == 0 || i == total-1 {
			fmt.Fprintf(progress, "\rcopied %d/%d", i+1, total)
		}
	}
	fmt.Fprintln(progress)
	return total, copied, nil
}
