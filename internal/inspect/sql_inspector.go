package inspect

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/db"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"
)

// RowQuerier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type RowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Queryer is the part of *sql.DB an inspector needs.
type Queryer interface {
	RowQuerier
	Close() error
}

// SQLInspector runs one fixed query per call against a relational datastore.
type SQLInspector struct {
	cfg    config.DatastoreConfig
	logger *zap.SugaredLogger
	open   func(context.Context, config.DatastoreConfig) (Queryer, error)
}

func NewSQLInspector(cfg config.DatastoreConfig, logger *zap.SugaredLogger) *SQLInspector {
	if logger == nil {
		logger = utils.Logger().Sugar()
	}
	return &SQLInspector{
		cfg:    cfg,
		logger: logger,
		open: func(ctx context.Context, cfg config.DatastoreConfig) (Queryer, error) {
			handle, err := db.OpenSQL(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return handle, nil
		},
	}
}

func (i *SQLInspector) Dialect() (Dialect, error) {
	return DialectFor(i.cfg.Driver)
}

// Run opens one connection, streams every row of q to rep and closes the
// connection.
func (i *SQLInspector) Run(ctx context.Context, q Query, rep *report.Reporter) error {
	return probe.Run(ctx, probe.Probe[Queryer]{
		Name: db.Label(i.cfg),
		Open: func(ctx context.Context) (Queryer, error) {
			return i.open(ctx, i.cfg)
		},
		Action: func(ctx context.Context, handle Queryer, rep *report.Reporter) error {
			i.logger.Debugw("running inspector query", "title", q.Title, "sql", q.SQL)
			return Stream(ctx, handle, q, rep)
		},
	}, rep)
}

// Stream runs q on handle and writes a title line, one line per row as it is
// scanned and a summary line.
func Stream(ctx context.Context, handle RowQuerier, q Query, rep *report.Reporter) error {
	rep.Info("%s:", q.Title)

	rows, err := handle.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", q.Title, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}

	n := 0
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for idx := range values {
			ptrs[idx] = &values[idx]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row %d: %w", n+1, err)
		}

		rep.Row(columns, values)
		n++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	rep.Summary(n)
	return nil
}
