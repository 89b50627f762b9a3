package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/yyup/kadmin/config"
)

// DriverName maps a configured driver to the database/sql driver registered
// for it.
func DriverName(driver string) (string, error) {
	switch driver {
	case "mysql":
		return "mysql", nil
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// BuildDSN returns the data source name for cfg. An explicit DSN wins.
func BuildDSN(cfg config.DatastoreConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = cfg.Database
		mc.ParseTime = true
		// SHOW statements with placeholders are interpolated client side.
		mc.InterpolateParams = true
		mc.Timeout = cfg.ConnectTimeout
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   addr,
			Path:   "/" + cfg.Database,
		}
		if cfg.ConnectTimeout > 0 {
			seconds := int(cfg.ConnectTimeout.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			q := url.Values{}
			q.Set("connect_timeout", strconv.Itoa(seconds))
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	case "sqlite":
		return cfg.Database, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// Label names the datastore in report lines without exposing credentials.
func Label(cfg config.DatastoreConfig) string {
	switch {
	case cfg.Driver == "sqlite":
		return fmt.Sprintf("%s (sqlite)", cfg.Database)
	case cfg.DSN != "":
		return fmt.Sprintf("%s (%s dsn)", cfg.Database, cfg.Driver)
	default:
		return fmt.Sprintf("%s (%s %s)", cfg.Database, cfg.Driver, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	}
}

// OpenSQL opens a single-connection handle and pings it. The handle is closed
// again if the ping fails, so callers only own it on success.
func OpenSQL(ctx context.Context, cfg config.DatastoreConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, errors.New("datastore: empty dsn")
	}

	handle, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", cfg.Driver, err)
	}

	// One connection per run; sqlite :memory: databases live on it.
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	if err := handle.PingContext(pingCtx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("%s: ping: %w", cfg.Driver, err)
	}

	return handle, nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
