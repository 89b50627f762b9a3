package inspect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the SQL spelling of each fixed query.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var ErrInvalidIdentifier = errors.New("inspect: invalid identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func DialectFor(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(driver)); d {
	case MySQL, Postgres, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("inspect: unsupported driver %q", driver)
	}
}

// Query is one fixed read-only statement.
type Query struct {
	Title string
	SQL   string
	Args  []any
}

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) quote(ident string) string {
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// Tables lists tables whose name matches a LIKE pattern, in the datastore's
// native ordering where it has one.
func Tables(d Dialect, pattern string) Query {
	if pattern == "" {
		pattern = "%"
	}

	var stmt string
	switch d {
	case MySQL:
		stmt = "SHOW TABLES LIKE ?"
	case Postgres:
		stmt = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name LIKE $1 ORDER BY table_name"
	default:
		stmt = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name LIKE ?"
	}

	return Query{
		Title: fmt.Sprintf("tables like %s", pattern),
		SQL:   stmt,
		Args:  []any{pattern},
	}
}

// Columns lists the columns of table in ordinal order.
func Columns(d Dialect, table string) (Query, error) {
	return columns(d, table, "")
}

// ColumnsLike lists the columns of table whose name matches pattern.
func ColumnsLike(d Dialect, table, pattern string) (Query, error) {
	if pattern == "" {
		pattern = "%"
	}
	return columns(d, table, pattern)
}

// IconFields lists the icon-related columns of table.
func IconFields(d Dialect, table string) (Query, error) {
	return ColumnsLike(d, table, "%icon%")
}

func columns(d Dialect, table, pattern string) (Query, error) {
	if err := checkIdentifier(table); err != nil {
		return Query{}, err
	}

	var b strings.Builder
	switch d {
	case MySQL:
		b.WriteString("SELECT column_name, column_type FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ?")
		if pattern != "" {
			b.WriteString(" AND column_name LIKE ?")
		}
		b.WriteString(" ORDER BY ordinal_position")
	case Postgres:
		b.WriteString("SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1")
		if pattern != "" {
			b.WriteString(" AND column_name LIKE $2")
		}
		b.WriteString(" ORDER BY ordinal_position")
	default:
		b.WriteString("SELECT name, type FROM pragma_table_info(?)")
		if pattern != "" {
			b.WriteString(" WHERE name LIKE ?")
		}
		b.WriteString(" ORDER BY cid")
	}

	q := Query{
		Title: fmt.Sprintf("columns of %s", table),
		SQL:   b.String(),
		Args:  []any{table},
	}
	if pattern != "" {
		q.Title = fmt.Sprintf("columns of %s like %s", table, pattern)
		q.Args = append(q.Args, pattern)
	}
	return q, nil
}

// ModelConfigs lists the AI model configurations, optionally only active ones.
func ModelConfigs(d Dialect, activeOnly bool) Query {
	var b strings.Builder
	b.WriteString("SELECT id, name, display_name, provider, model_type, endpoint_url, status, is_default FROM ")
	b.WriteString(d.quote("ai_model_configs"))

	q := Query{Title: "ai model configs"}
	if activeOnly {
		b.WriteString(" WHERE status = " + d.placeholder(1))
		q.Title = "active ai model configs"
		q.Args = []any{"active"}
	}
	b.WriteString(" ORDER BY provider, name")
	q.SQL = b.String()
	return q
}

// RowByID selects one row by primary key. An empty column list selects all
// columns.
func RowByID(d Dialect, table string, columns []string, id any) (Query, error) {
	if err := checkIdentifier(table); err != nil {
		return Query{}, err
	}

	selected := "*"
	if len(columns) > 0 {
		quoted := make([]string, 0, len(columns))
		for _, c := range columns {
			if err := checkIdentifier(c); err != nil {
				return Query{}, err
			}
			quoted = append(quoted, d.quote(c))
		}
		selected = strings.Join(quoted, ", ")
	}

	return Query{
		Title: fmt.Sprintf("%s row %v", table, id),
		SQL:   fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", selected, d.quote(table), d.quote("id"), d.placeholder(1)),
		Args:  []any{id},
	}, nil
}

// Project selects one row of the projects table.
func Project(d Dialect, id any) Query {
	q, _ := RowByID(d, "projects", nil, id)
	return q
}
