package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"

	_ "modernc.org/sqlite"
)

const rolesPlan = `
name: 2024-06-roles-skills
statements:
  - CREATE TABLE roles (id INTEGER PRIMARY KEY, name TEXT NOT NULL)
  - ALTER TABLE roles ADD COLUMN skills TEXT DEFAULT '[]'
  - "   "
  - UPDATE roles SET skills = '[]' WHERE skills IS NULL
verify: roles
`

func sqliteRunner(t *testing.T) (*Runner, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "migrate.db")
	runner, err := NewRunner(config.DatastoreConfig{Driver: "sqlite", Database: path, ConnectTimeout: time.Second}, nil)
	require.NoError(t, err)
	runner.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return runner, path
}

func countRows(t *testing.T, path, query string) int {
	t.Helper()

	handle, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer handle.Close()

	var n int
	require.NoError(t, handle.QueryRow(query).Scan(&n))
	return n
}

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(rolesPlan))
	require.NoError(t, err)
	require.Equal(t, "2024-06-roles-skills", plan.Name)
	require.Len(t, plan.Statements, 3)
	require.Equal(t, "roles", plan.Verify)

	_, err = ParsePlan([]byte("name: x\nstatement: [SELECT 1]\n"))
	require.Error(t, err)

	_, err = ParsePlan([]byte("name: empty\nstatements: []\n"))
	require.ErrorContains(t, err, "no statements")
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rolesPlan), 0o600))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Equal(t, "2024-06-roles-skills", plan.Name)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyIsRecordedAndSkippedOnRerun(t *testing.T) {
	runner, path := sqliteRunner(t)
	plan, err := ParsePlan([]byte(rolesPlan))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, runner.Apply(context.Background(), plan, report.New(&buf)))

	out := buf.String()
	for _, want := range []string{"applied 1/3", "applied 3/3", "committed (3 statements)", "- name=skills, type=TEXT"} {
		require.Contains(t, out, want)
	}
	require.Equal(t, 1, countRows(t, path, "SELECT COUNT(*) FROM kadmin_migrations"))

	buf.Reset()
	require.NoError(t, runner.Apply(context.Background(), plan, report.New(&buf)))
	require.Contains(t, buf.String(), "already applied")
	require.NotContains(t, buf.String(), "applied 1/3")
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	runner, path := sqliteRunner(t)
	plan := Plan{
		Name: "broken",
		Statements: []string{
			"CREATE TABLE menus (id INTEGER PRIMARY KEY)",
			"ALTER TABLE missing ADD COLUMN icon TEXT",
		},
	}

	var buf bytes.Buffer
	err := runner.Apply(context.Background(), plan, report.New(&buf))

	var opErr *probe.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Contains(t, err.Error(), "statement 2/2")
	require.Equal(t, 1, strings.Count(buf.String(), "operation failed"))
	require.Contains(t, buf.String(), "SQL: ALTER TABLE missing")

	require.Zero(t, countRows(t, path, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'menus'"))
	require.Zero(t, countRows(t, path, "SELECT COUNT(*) FROM kadmin_migrations"))
}

func TestDryRunDoesNotConnect(t *testing.T) {
	plan, err := ParsePlan([]byte(rolesPlan))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DryRun(plan, report.New(&buf)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[1], "1/3: CREATE TABLE roles")
	require.Contains(t, lines[4], "verify columns of roles")
}

func TestNewRunnerRejectsUnknownDriver(t *testing.T) {
	_, err := NewRunner(config.DatastoreConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
}

func TestNewRunnerFallsBackToSharedLogger(t *testing.T) {
	shared, err := utils.NewLogger(config.LoggingConfig{Level: "warn"})
	require.NoError(t, err)

	r, err := NewRunner(config.DatastoreConfig{Driver: "sqlite", Database: ":memory:"}, nil)
	require.NoError(t, err)
	require.True(t, r.logger.Desugar().Core() == shared.Core())
}
