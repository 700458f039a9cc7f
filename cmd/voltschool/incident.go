package main

import (
	"context"

	"github.com/spf13/cobra"

	"voltschool/pkg/domain"
)

func newIncidentCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incident",
		Short: "Open or resolve incidents",
	}
	cmd.AddCommand(newIncidentOpenCommand(root), newIncidentResolveCommand(root))
	return cmd
}

func newIncidentOpenCommand(root *rootOptions) *cobra.Command {
	var (
		kind        string
		description string
		buses       []string
		delay       int
		location    string
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Report an incident and mark affected buses delayed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			t := domain.IncidentType(kind)
			if !t.Valid() {
				return usagef("unknown incident type %q", kind)
			}
			in := domain.Incident{
				Type:           t,
				Description:    description,
				EstimatedDelay: delay,
				AffectedBuses:  buses,
			}
			if location != "" {
				in.Location = &location
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(context.Background(), a, &err)
			a.svc.Load(ctx)
			opened, err := a.svc.OpenIncident(ctx, in)
			if err != nil {
				return err
			}
			return printJSON(cmd, opened)
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "road-crash|road-closure|bus-breakdown|traffic|weather")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringSliceVar(&buses, "bus", nil, "affected bus id (repeatable)")
	cmd.Flags().IntVar(&delay, "delay", 0, "estimated delay in minutes")
	cmd.Flags().StringVar(&location, "location", "", "where the incident happened")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newIncidentResolveCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <incident-id>",
		Short: "Resolve an incident and mark its buses active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(context.Background(), a, &err)
			a.svc.Load(ctx)
			resolved, err := a.svc.ResolveIncident(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, resolved)
		},
	}
}
