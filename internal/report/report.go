// Package report writes the console output of the admin tools: one display
// line per event, flushed as soon as it is produced.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// NoRows is written in place of row lines when a query returns nothing.
const NoRows = "no rows found"

// Reporter writes ordered display lines to w. It is safe for use from the
// goroutine that owns a probe; the mutex only protects against interleaved
// writes from helpers such as browser event hooks.
type Reporter struct {
	mu    sync.Mutex
	w     io.Writer
	lines int
	rows  int
	err   error

	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
}

func New(w io.Writer) *Reporter {
	renderer := lipgloss.NewRenderer(w)
	return &Reporter{
		w:       w,
		success: renderer.NewStyle().Foreground(lipgloss.Color("10")),
		failure: renderer.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    renderer.NewStyle().Foreground(lipgloss.Color("11")),
		muted:   renderer.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *Reporter) Info(format string, args ...any) {
	r.write(fmt.Sprintf(format, args...))
}

func (r *Reporter) Success(format string, args ...any) {
	r.write(r.success.Render("✅") + " " + fmt.Sprintf(format, args...))
}

func (r *Reporter) Failure(format string, args ...any) {
	r.write(r.failure.Render("❌") + " " + fmt.Sprintf(format, args...))
}

func (r *Reporter) Warn(format string, args ...any) {
	r.write(r.warn.Render("⚠️") + " " + fmt.Sprintf(format, args...))
}

// Detail writes an indented line belonging to the previous one.
func (r *Reporter) Detail(format string, args ...any) {
	r.write("   " + r.muted.Render(fmt.Sprintf(format, args...)))
}

// Row writes one result record. A single-column record is shown as its bare
// value, wider records as col=value pairs in column order.
func (r *Reporter) Row(columns []string, values []any) {
	r.mu.Lock()
	r.rows++
	r.mu.Unlock()

	if len(values) == 1 {
		r.write("- " + FormatValue(values[0]))
		return
	}

	parts := make([]string, 0, len(values))
	for i, v := range values {
		name := fmt.Sprintf("col%d", i+1)
		if i < len(columns) {
			name = columns[i]
		}
		parts = append(parts, name+"="+FormatValue(v))
	}
	r.write("- " + strings.Join(parts, ", "))
}

// Empty writes the no-rows line.
func (r *Reporter) Empty() {
	r.write(NoRows)
}

// Summary closes a row listing: either the no-rows line or a count.
func (r *Reporter) Summary(n int) {
	if n == 0 {
		r.Empty()
		return
	}
	if n == 1 {
		r.write("(1 row)")
		return
	}
	r.write(fmt.Sprintf("(%d rows)", n))
}

// Lines reports how many lines have been written.
func (r *Reporter) Lines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines
}

// Rows reports how many Row calls have been made.
func (r *Reporter) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Err returns the first write error, if any.
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reporter) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines++
	if _, err := io.WriteString(r.w, line+"\n"); err != nil && r.err == nil {
		r.err = err
	}
}

// FormatValue renders a scanned column value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
