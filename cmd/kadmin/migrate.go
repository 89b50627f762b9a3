package main

import (
	"github.com/spf13/cobra"

	"github.com/yyup/kadmin/internal/migrate"
)

func newMigrateCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate <plan.yaml>",
		Short: "Apply a one-off migration plan in a single transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := migrate.LoadPlan(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				return migrate.DryRun(plan, a.rep)
			}

			runner, err := migrate.NewRunner(a.cfg.Datastore, a.sugar())
			if err != nil {
				return err
			}
			return runner.Apply(cmd.Context(), plan, a.rep)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without connecting")
	return cmd
}
