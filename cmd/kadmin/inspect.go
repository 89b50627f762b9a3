package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yyup/kadmin/internal/inspect"
)

func newInspectCmd(a *app) *cobra.Command {
	var driver, database string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run one fixed read-only query and print the rows",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if driver != "" {
				a.cfg.Datastore.Driver = driver
			}
			if database != "" {
				a.cfg.Datastore.Database = database
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "override DB_DRIVER (mysql, postgres, sqlite)")
	cmd.PersistentFlags().StringVar(&database, "database", "", "override DB_NAME")

	// sqlQuery wraps a query builder into a RunE that runs it once.
	sqlQuery := func(build func(d inspect.Dialect, args []string) (inspect.Query, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			inspector := inspect.NewSQLInspector(a.cfg.Datastore, a.sugar())
			dialect, err := inspector.Dialect()
			if err != nil {
				return err
			}
			q, err := build(dialect, args)
			if err != nil {
				return err
			}
			return inspector.Run(cmd.Context(), q, a.rep)
		}
	}

	tables := &cobra.Command{
		Use:   "tables [like-pattern]",
		Short: "List tables matching a LIKE pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			pattern := "%"
			if len(args) == 1 {
				pattern = args[0]
			}
			return inspect.Tables(d, pattern), nil
		}),
	}

	var like string
	columns := &cobra.Command{
		Use:   "columns <table>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			if like != "" {
				return inspect.ColumnsLike(d, args[0], like)
			}
			return inspect.Columns(d, args[0])
		}),
	}
	columns.Flags().StringVar(&like, "like", "", "only columns matching this LIKE pattern")

	icons := &cobra.Command{
		Use:   "icons <table>",
		Short: "List the icon columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			return inspect.IconFields(d, args[0])
		}),
	}

	var activeOnly bool
	modelConfigs := &cobra.Command{
		Use:   "model-configs",
		Short: "List AI model configurations",
		Args:  cobra.NoArgs,
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			return inspect.ModelConfigs(d, activeOnly), nil
		}),
	}
	modelConfigs.Flags().BoolVar(&activeOnly, "active", false, "only configurations with status active")

	var rowColumns []string
	row := &cobra.Command{
		Use:   "row <table> <id>",
		Short: "Show one row by id",
		Args:  cobra.ExactArgs(2),
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			return inspect.RowByID(d, args[0], rowColumns, parseID(args[1]))
		}),
	}
	row.Flags().StringSliceVar(&rowColumns, "columns", nil, "columns to select (default all)")

	project := &cobra.Command{
		Use:   "project <id>",
		Short: "Show one project row",
		Args:  cobra.ExactArgs(1),
		RunE: sqlQuery(func(d inspect.Dialect, args []string) (inspect.Query, error) {
			return inspect.Project(d, parseID(args[0])), nil
		}),
	}

	collections := &cobra.Command{
		Use:   "collections [regex]",
		Short: "List mongo collections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return inspect.NewMongoInspector(a.cfg.Mongo).Collections(cmd.Context(), pattern, a.rep)
		},
	}

	keys := &cobra.Command{
		Use:   "keys [glob]",
		Short: "List redis keys with SCAN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return inspect.NewRedisInspector(a.cfg.Redis).Keys(cmd.Context(), pattern, a.rep)
		},
	}

	cmd.AddCommand(tables, columns, icons, modelConfigs, row, project, collections, keys)
	return cmd
}

// parseID keeps numeric ids numeric so they compare as integers.
func parseID(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
