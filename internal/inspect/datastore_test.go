package inspect

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/db"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

func TestMongoCollectionsConnectionFailure(t *testing.T) {
	inspector := NewMongoInspector(config.Defaults().Mongo)
	inspector.open = func(ctx context.Context, cfg config.MongoConfig) (*db.MongoHandle, error) {
		return nil, errors.New("server selection error: connection refused")
	}

	var buf bytes.Buffer
	err := inspector.Collections(context.Background(), "^role", report.New(&buf))

	require.Equal(t, probe.ExitConnection, probe.ExitCode(err))
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestRedisKeysTimeout(t *testing.T) {
	inspector := NewRedisInspector(config.Defaults().Redis)
	inspector.open = func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
		return nil, context.DeadlineExceeded
	}

	var buf bytes.Buffer
	err := inspector.Keys(context.Background(), "", report.New(&buf))

	var ce *probe.ConnectionError
	require.ErrorAs(t, err, &ce)
	var te *probe.TimeoutError
	require.ErrorAs(t, err, &te)
	require.Equal(t, probe.ExitTimeout, probe.ExitCode(err))
	require.Contains(t, buf.String(), "connection failed: timed out")
}

func TestMongoCollectionsIntegration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping integration test")
	}

	inspector := NewMongoInspector(config.MongoConfig{
		URI:            uri,
		Database:       "kadmin_inspect_test",
		ConnectTimeout: 5 * time.Second,
	})

	var buf bytes.Buffer
	require.NoError(t, inspector.Collections(context.Background(), "^does_not_exist$", report.New(&buf)))
	require.Contains(t, buf.String(), report.NoRows)
}
