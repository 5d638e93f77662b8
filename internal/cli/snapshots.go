package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
)

// NewListCommand はキーの一覧を出す。
func NewListCommand(opts *RootOptions) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted keys",
		Example: `  cartctl list
  cartctl list --client 5f0c8f0e-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, closeFn, err := opts.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			prefix := ""
			if clientID != "" {
				prefix = clientID + ":"
			}
			keys, err := kv.Keys(cmd.Context(), prefix)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd, keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "only keys of this client id")
	return cmd
}

// ShowOutput は show の出力。
type ShowOutput struct {
	Key       string                    `json:"key"`
	Snapshot  *model.PersistedSnapshot  `json:"snapshot,omitempty"`
	Selection *model.PersistedSelection `json:"selection,omitempty"`
}

// NewShowCommand は1キーの中身をデコードして出す。
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Decode one persisted snapshot or selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			kv, closeFn, err := opts.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			raw, ok, err := kv.Get(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			if !ok {
				return fmt.Errorf("key %q not found", key)
			}

			out := ShowOutput{Key: key}
			if strings.HasSuffix(key, ":"+usecase.KeySelection) {
				sel, err := model.DecodeSelection(raw)
				if err != nil {
					return err
				}
				out.Selection = &sel
			} else {
				snap, err := model.DecodeSnapshot(raw)
				if err != nil {
					return err
				}
				out.Snapshot = &snap
			}

			if opts.Format == "json" {
				return writeJSON(cmd, out)
			}
			printShow(cmd, out)
			return nil
		},
	}
}

// NewPurgeCommand はクライアント1件分のキーを消す。
func NewPurgeCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "purge <client-id>",
		Short: "Delete every persisted key of one client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID := strings.TrimSpace(args[0])
			if clientID == "" {
				return fmt.Errorf("client id is required")
			}

			kv, closeFn, err := opts.OpenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			keys, err := kv.Keys(cmd.Context(), clientID+":")
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			if !dryRun {
				for _, k := range keys {
					if err := kv.Delete(cmd.Context(), k); err != nil {
						return fmt.Errorf("delete %s: %w", k, err)
					}
				}
			}

			if opts.Format == "json" {
				return writeJSON(cmd, map[string]any{"deleted": keys, "dry_run": dryRun})
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", k)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print the keys that would be deleted")
	return cmd
}

func printShow(cmd *cobra.Command, out ShowOutput) {
	w := cmd.OutOrStdout()
	if out.Selection != nil {
		fmt.Fprintf(w, "selection %s (saved %s)\n", out.Key, out.Selection.SavedAt.Format("2006-01-02 15:04:05"))
		for _, id := range out.Selection.IDs {
			fmt.Fprintf(w, "  %s\n", id)
		}
		return
	}

	snap := out.Snapshot
	fmt.Fprintf(w, "%s cart %s (saved %s)\n", snap.Cart.Mode, out.Key, snap.SavedAt.Format("2006-01-02 15:04:05"))
	if snap.OwnerUserID != "" {
		fmt.Fprintf(w, "  owner %s\n", snap.OwnerUserID)
	}
	for _, l := range snap.Cart.Lines {
		fmt.Fprintf(w, "  %-40s %-12s %-4s x%-2d %s\n", l.ID, l.ProductID, l.Size, l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "  count %d total %s\n", snap.Cart.LineCount, snap.Cart.Total.StringFixed(2))
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
