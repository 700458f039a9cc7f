package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voltschool/internal/remote"
)

func newDumpCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <collection>",
		Short: "Print the stored collection row as indented JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			collection, err := parseCollection(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			adapter, err := remote.Open(ctx, cfg.RemoteConfig(), logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := adapter.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			raw, err := adapter.FetchRaw(ctx, collection)
			if errors.Is(err, remote.ErrNotFound) {
				raw, err = []byte("[]"), nil
			}
			if err != nil {
				return fmt.Errorf("dump %s: %w", collection, err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("dump %s: %w", collection, err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
