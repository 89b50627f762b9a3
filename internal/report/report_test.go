package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yyup/kadmin/internal/report"
)

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestReporterWritesPlainLinesToNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	rep := report.New(&buf)

	rep.Info("checking %s", "tables")
	rep.Success("connected to %s", "kindergarten")
	rep.Failure("query failed: %v", "boom")
	rep.Detail("status: %d", 401)

	want := []string{
		"checking tables",
		"✅ connected to kindergarten",
		"❌ query failed: boom",
		"   status: 401",
	}
	if diff := cmp.Diff(want, lines(&buf)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
	require.Equal(t, 4, rep.Lines())
	require.NoError(t, rep.Err())
}

func TestReporterRows(t *testing.T) {
	var buf bytes.Buffer
	rep := report.New(&buf)

	rep.Row([]string{"Tables_in_k (%customer%)"}, []any{[]byte("customers")})
	rep.Row([]string{"id", "name", "icon"}, []any{int64(7), "Sunshine Class", nil})
	rep.Summary(rep.Rows())

	want := []string{
		"- customers",
		"- id=7, name=Sunshine Class, icon=NULL",
		"(2 rows)",
	}
	if diff := cmp.Diff(want, lines(&buf)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestReporterSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	rep := report.New(&buf)

	rep.Summary(0)

	require.Equal(t, report.NoRows+"\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, time.January, 27, 8, 0, 0, 0, time.UTC)

	require.Equal(t, "NULL", report.FormatValue(nil))
	require.Equal(t, "abc", report.FormatValue([]byte("abc")))
	require.Equal(t, "42", report.FormatValue(42))
	require.Equal(t, "true", report.FormatValue(true))
	require.Equal(t, ts.String(), report.FormatValue(ts))
}
