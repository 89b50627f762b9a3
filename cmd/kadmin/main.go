// Command kadmin bundles the kindergarten platform's admin scripts:
// datastore inspectors, service probers and source patchers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil && a.rep != nil {
		if werr := a.rep.Err(); werr != nil {
			fmt.Fprintf(stderr, "error: write output: %v\n", werr)
			return probe.ExitOperation
		}
	}
	if err == nil {
		return probe.ExitOK
	}
	if !probe.Reported(err) {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return probe.ExitCode(err)
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	envFiles []string
	logLevel string

	cfg    config.Config
	logger *zap.Logger
	rep    *report.Reporter
}

func (a *app) sugar() *zap.SugaredLogger {
	return a.logger.Sugar()
}

func newRootCmd(a *app, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "kadmin",
		Short:         "Admin inspectors, probers and patchers for the kindergarten platform",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFiles...)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Logging.Level = strings.ToLower(a.logLevel)
			}

			logger, err := utils.NewLogger(cfg.Logging)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			a.cfg = cfg
			a.logger = logger
			a.rep = report.New(cmd.OutOrStdout())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "env files to read; earlier files win, the process environment wins over all")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newInspectCmd(a),
		newMigrateCmd(a),
		newProbeCmd(a),
		newBrowseCmd(a),
		newPatchCmd(a),
	)
	return root
}
