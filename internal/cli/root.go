// Package cli は KVストアに保存されたカート状態を調べる運用CLI（cartctl）。
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	infraRepo "storefront/internal/infra/repository"
	repo "storefront/internal/repository"
)

// RootOptions は全コマンド共通のフラグ。
type RootOptions struct {
	Format string // "json" | "text"

	// テストで差し替える
	OpenStore func() (repo.KeyValueStore, func() error, error)
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{OpenStore: openConfiguredStore})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Inspect persisted storefront cart state",
		Long:  "Inspect and purge the cart snapshots and checkout selections kept in the storefront key-value store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func openConfiguredStore() (repo.KeyValueStore, func() error, error) {
	cfg, err := config.LoadStore()
	if err != nil {
		return nil, nil, err
	}
	return infraRepo.OpenKVStore(cfg)
}
