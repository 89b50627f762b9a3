package inspect

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yyup/kadmin/internal/report"
)

type fakeScanner struct {
	pages [][]string
	calls int
	err   error
}

func (f *fakeScanner) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	if f.err != nil {
		return redis.NewScanCmdResult(nil, 0, f.err)
	}
	page := f.pages[cursor]
	f.calls++
	next := cursor + 1
	if int(next) >= len(f.pages) {
		next = 0
	}
	return redis.NewScanCmdResult(page, next, nil)
}

func TestScanKeysFollowsCursor(t *testing.T) {
	var buf bytes.Buffer
	rep := report.New(&buf)
	s := &fakeScanner{pages: [][]string{{"session:1", "session:2"}, {}, {"session:3"}}}

	require.NoError(t, scanKeys(context.Background(), s, "session:*", 0, rep))
	require.Equal(t, 3, s.calls)
	require.Equal(t, []string{"session:1", "session:2", "session:3"}, rowLines(buf.String()))
}

func TestScanKeysStopsAtLimit(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeScanner{pages: [][]string{{"a", "b", "c"}, {"d"}}}

	require.NoError(t, scanKeys(context.Background(), s, "*", 2, report.New(&buf)))
	require.Equal(t, []string{"a", "b"}, rowLines(buf.String()))
	require.Contains(t, buf.String(), "stopped after 2 keys")
	require.Equal(t, 1, s.calls)
}

func TestScanKeysEmptyAndError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, scanKeys(context.Background(), &fakeScanner{pages: [][]string{{}}}, "*", 10, report.New(&buf)))
	require.Contains(t, buf.String(), report.NoRows)

	err := scanKeys(context.Background(), &fakeScanner{err: errors.New("NOAUTH")}, "*", 10, report.New(&buf))
	require.ErrorContains(t, err, "NOAUTH")
}
