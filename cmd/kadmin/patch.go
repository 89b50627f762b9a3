package main

import (
	"github.com/spf13/cobra"

	"github.com/yyup/kadmin/internal/patch"
)

func newPatchCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "patch <rules.yaml> <file>...",
		Short: "Apply regex rules to files in place",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := patch.LoadRules(args[0])
			if err != nil {
				return err
			}
			pipeline, err := patch.Compile(rules)
			if err != nil {
				return err
			}
			a.sugar().Debugw("compiled patch rules", "rules", len(rules), "files", len(args)-1)
			return pipeline.PatchFiles(args[1:], dryRun, a.rep)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	return cmd
}
