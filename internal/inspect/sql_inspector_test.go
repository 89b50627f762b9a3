package inspect

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"

	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Keep-alive connections of the docker client used by the MySQL test.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type countingDB struct {
	*sql.DB
	closes int
}

func (c *countingDB) Close() error {
	c.closes++
	return c.DB.Close()
}

func seedSQLite(t *testing.T, stmts ...string) config.DatastoreConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kindergarten.db")
	seed, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer seed.Close()

	for _, stmt := range stmts {
		_, err := seed.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return config.DatastoreConfig{Driver: "sqlite", Database: path, ConnectTimeout: time.Second}
}

func newCountingInspector(cfg config.DatastoreConfig) (*SQLInspector, *[]*countingDB) {
	opened := &[]*countingDB{}
	inspector := NewSQLInspector(cfg, nil)
	inner := inspector.open
	inspector.open = func(ctx context.Context, cfg config.DatastoreConfig) (Queryer, error) {
		q, err := inner(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c := &countingDB{DB: q.(*sql.DB)}
		*opened = append(*opened, c)
		return c, nil
	}
	return inspector, opened
}

func rowLines(out string) []string {
	var rows []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "- ") {
			rows = append(rows, strings.TrimPrefix(line, "- "))
		}
	}
	return rows
}

func TestTablesLikeCustomer(t *testing.T) {
	cfg := seedSQLite(t,
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)",
		"CREATE TABLE customer_orders (id INTEGER PRIMARY KEY, customer_id INTEGER)",
		"CREATE TABLE products (id INTEGER PRIMARY KEY, title TEXT)",
	)
	inspector, opened := newCountingInspector(cfg)

	var buf bytes.Buffer
	err := inspector.Run(context.Background(), Tables(SQLite, "%customer%"), report.New(&buf))
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"customers", "customer_orders"}, rowLines(buf.String())); diff != "" {
		t.Fatalf("unexpected tables (-want +got):\n%s", diff)
	}
	require.Contains(t, buf.String(), "(2 rows)")
	require.Len(t, *opened, 1)
	require.Equal(t, 1, (*opened)[0].closes)
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	cfg := seedSQLite(t, "CREATE TABLE products (id INTEGER PRIMARY KEY)")
	inspector, opened := newCountingInspector(cfg)

	var buf bytes.Buffer
	err := inspector.Run(context.Background(), Tables(SQLite, "%customer%"), report.New(&buf))
	require.NoError(t, err)
	require.Contains(t, buf.String(), report.NoRows)
	require.Empty(t, rowLines(buf.String()))
	require.Equal(t, 1, (*opened)[0].closes)
}

func TestOperationErrorStillCloses(t *testing.T) {
	cfg := seedSQLite(t, "CREATE TABLE products (id INTEGER PRIMARY KEY)")
	inspector, opened := newCountingInspector(cfg)

	var buf bytes.Buffer
	err := inspector.Run(context.Background(), Project(SQLite, 42), report.New(&buf))

	var opErr *probe.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, 1, strings.Count(buf.String(), "operation failed"))
	require.Equal(t, 1, (*opened)[0].closes)
}

func TestConnectionErrorOpensNothing(t *testing.T) {
	inspector := NewSQLInspector(config.DatastoreConfig{
		Driver:         "sqlite",
		Database:       filepath.Join(t.TempDir(), "missing", "nested", "db.sqlite"),
		ConnectTimeout: time.Second,
	}, nil)

	var buf bytes.Buffer
	err := inspector.Run(context.Background(), Tables(SQLite, "%"), report.New(&buf))

	var connErr *probe.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, 1, strings.Count(buf.String(), "connection failed"))
	require.Equal(t, probe.ExitConnection, probe.ExitCode(err))
}

func TestConnectionErrorFromOpener(t *testing.T) {
	inspector := NewSQLInspector(config.Defaults().Datastore, nil)
	inspector.open = func(ctx context.Context, cfg config.DatastoreConfig) (Queryer, error) {
		return nil, errors.New("Access denied for user 'root'@'localhost'")
	}

	var buf bytes.Buffer
	err := inspector.Run(context.Background(), Tables(MySQL, "%"), report.New(&buf))

	var connErr *probe.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), "Access denied")
}

func TestColumnsAndIconFields(t *testing.T) {
	cfg := seedSQLite(t,
		"CREATE TABLE menus (id INTEGER PRIMARY KEY, title TEXT, icon TEXT, icon_color TEXT, sort INTEGER)",
	)
	inspector := NewSQLInspector(cfg, nil)

	q, err := Columns(SQLite, "menus")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, inspector.Run(context.Background(), q, report.New(&buf)))
	want := []string{
		"name=id, type=INTEGER",
		"name=title, type=TEXT",
		"name=icon, type=TEXT",
		"name=icon_color, type=TEXT",
		"name=sort, type=INTEGER",
	}
	if diff := cmp.Diff(want, rowLines(buf.String())); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}

	q, err = IconFields(SQLite, "menus")
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, inspector.Run(context.Background(), q, report.New(&buf)))
	if diff := cmp.Diff(want[2:4], rowLines(buf.String())); diff != "" {
		t.Fatalf("unexpected icon fields (-want +got):\n%s", diff)
	}
}

func TestModelConfigsAndRowByID(t *testing.T) {
	cfg := seedSQLite(t,
		`CREATE TABLE ai_model_configs (
			id INTEGER PRIMARY KEY, name TEXT, display_name TEXT, provider TEXT,
			model_type TEXT, endpoint_url TEXT, status TEXT, is_default INTEGER)`,
		`INSERT INTO ai_model_configs VALUES
			(1, 'doubao-pro', 'Doubao Pro', 'volcengine', 'text', 'https://ark.example.com/api/v3', 'active', 1),
			(2, 'tts-v3', 'TTS V3', 'volcengine', 'speech', NULL, 'inactive', 0),
			(3, 'deepseek-chat', 'DeepSeek', 'deepseek', 'text', 'https://api.deepseek.com', 'active', 0)`,
		"CREATE TABLE projects (id INTEGER PRIMARY KEY, name TEXT, icon TEXT)",
		"INSERT INTO projects VALUES (42, 'Spring Enrollment', NULL)",
	)
	inspector := NewSQLInspector(cfg, nil)

	var buf bytes.Buffer
	require.NoError(t, inspector.Run(context.Background(), ModelConfigs(SQLite, true), report.New(&buf)))
	rows := rowLines(buf.String())
	require.Len(t, rows, 2)
	require.True(t, strings.HasPrefix(rows[0], "id=3, name=deepseek-chat"), rows[0])
	require.True(t, strings.HasPrefix(rows[1], "id=1, name=doubao-pro"), rows[1])

	buf.Reset()
	require.NoError(t, inspector.Run(context.Background(), Project(SQLite, 42), report.New(&buf)))
	require.Equal(t, []string{"id=42, name=Spring Enrollment, icon=NULL"}, rowLines(buf.String()))

	q, err := RowByID(SQLite, "projects", []string{"name"}, 42)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, inspector.Run(context.Background(), q, report.New(&buf)))
	require.Equal(t, []string{"Spring Enrollment"}, rowLines(buf.String()))
	require.Contains(t, buf.String(), "(1 row)")
}
