package inspect

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/db"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

const scanBatch = 100

type RedisInspector struct {
	cfg  config.RedisConfig
	open func(context.Context, config.RedisConfig) (*redis.Client, error)
}

func NewRedisInspector(cfg config.RedisConfig) *RedisInspector {
	return &RedisInspector{cfg: cfg, open: db.NewRedisClient}
}

// Keys lists keys matching a glob pattern using SCAN, stopping after the
// configured scan limit.
func (i *RedisInspector) Keys(ctx context.Context, pattern string, rep *report.Reporter) error {
	if pattern == "" {
		pattern = "*"
	}

	return probe.Run(ctx, probe.Probe[*redis.Client]{
		Name: fmt.Sprintf("%s db %d (redis)", i.cfg.Addr, i.cfg.DB),
		Open: func(ctx context.Context) (*redis.Client, error) {
			return i.open(ctx, i.cfg)
		},
		Action: func(ctx context.Context, client *redis.Client, rep *report.Reporter) error {
			rep.Info("keys matching %s:", pattern)
			return scanKeys(ctx, client, pattern, i.cfg.ScanLimit, rep)
		},
	}, rep)
}

type scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

func scanKeys(ctx context.Context, client scanner, pattern string, limit int, rep *report.Reporter) error {
	var (
		cursor uint64
		n      int
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan keys: %w", err)
		}

		for _, key := range keys {
			if limit > 0 && n >= limit {
				rep.Warn("stopped after %d keys", limit)
				rep.Summary(n)
				return nil
			}
			rep.Row([]string{"key"}, []any{key})
			n++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	rep.Summary(n)
	return nil
}
