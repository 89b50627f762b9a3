package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/db"
	"github.com/yyup/kadmin/internal/inspect"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"
)

const ledgerTable = "kadmin_migrations"

// Runner applies plans against one datastore, recording each applied plan in
// a ledger table so a second run is a no-op.
type Runner struct {
	cfg     config.DatastoreConfig
	dialect inspect.Dialect
	logger  *zap.SugaredLogger
	open    func(context.Context, config.DatastoreConfig) (*sql.DB, error)
	now     func() time.Time
}

func NewRunner(cfg config.DatastoreConfig, logger *zap.SugaredLogger) (*Runner, error) {
	dialect, err := inspect.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.Logger().Sugar()
	}

	return &Runner{
		cfg:     cfg,
		dialect: dialect,
		logger:  logger,
		open:    db.OpenSQL,
		now:     time.Now,
	}, nil
}

// Apply runs every statement of plan in one transaction and records it in
// the ledger. MySQL commits DDL implicitly, so a failed plan there may leave
// earlier statements applied.
func (r *Runner) Apply(ctx context.Context, plan Plan, rep *report.Reporter) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	return probe.Run(ctx, probe.Probe[*sql.DB]{
		Name: db.Label(r.cfg),
		Open: func(ctx context.Context) (*sql.DB, error) {
			return r.open(ctx, r.cfg)
		},
		Action: func(ctx context.Context, handle *sql.DB, rep *report.Reporter) error {
			return r.apply(ctx, handle, plan, rep)
		},
	}, rep)
}

func (r *Runner) apply(ctx context.Context, handle *sql.DB, plan Plan, rep *report.Reporter) error {
	if _, err := handle.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMP NOT NULL)", ledgerTable,
	)); err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	var appliedAt any
	err := handle.QueryRowContext(ctx,
		fmt.Sprintf("SELECT applied_at FROM %s WHERE name = %s", ledgerTable, r.placeholder(1)),
		plan.Name,
	).Scan(&appliedAt)
	switch {
	case err == nil:
		rep.Info("plan %s already applied at %s, skipping", plan.Name, report.FormatValue(appliedAt))
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read ledger: %w", err)
	}

	tx, err := handle.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n := len(plan.Statements)
	for i, stmt := range plan.Statements {
		r.logger.Debugw("executing migration statement", "plan", plan.Name, "index", i+1, "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			rep.Detail("SQL: %s", stmt)
			return fmt.Errorf("statement %d/%d: %w", i+1, n, err)
		}
		rep.Info("applied %d/%d", i+1, n)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (%s, %s)", ledgerTable, r.placeholder(1), r.placeholder(2)),
		plan.Name, r.now().UTC(),
	); err != nil {
		return fmt.Errorf("record ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	rep.Success("plan %s committed (%d statements)", plan.Name, n)

	if plan.Verify == "" {
		return nil
	}

	q, err := inspect.Columns(r.dialect, plan.Verify)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return inspect.Stream(ctx, handle, q, rep)
}

func (r *Runner) placeholder(n int) string {
	if r.dialect == inspect.Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// DryRun lists the statements of plan without connecting.
func DryRun(plan Plan, rep *report.Reporter) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	rep.Info("plan %s (dry run):", plan.Name)
	n := len(plan.Statements)
	for i, stmt := range plan.Statements {
		rep.Detail("%d/%d: %s", i+1, n, stmt)
	}
	if plan.Verify != "" {
		rep.Detail("verify columns of %s", plan.Verify)
	}
	return nil
}
