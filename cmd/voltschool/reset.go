package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voltschool/pkg/domain"
)

func newResetCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [collection...]",
		Short: "Empty collections locally and remotely (default: all)",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			names := make([]domain.CollectionName, 0, len(args))
			for _, arg := range args {
				c, err := parseCollection(arg)
				if err != nil {
					return err
				}
				names = append(names, c)
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(context.Background(), a, &err)
			a.svc.Load(ctx)
			if err := a.svc.Reset(ctx, names...); err != nil {
				return err
			}
			if len(names) == 0 {
				names = domain.Collections()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "reset %v\n", names)
			return err
		},
	}
}
