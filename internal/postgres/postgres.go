// Package postgres opens the pgx connection pool the repositories share.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultIdleTime    = 5 * time.Minute
	defaultHealthCheck = 30 * time.Second
	defaultPingTimeout = 3 * time.Second
)

// Config tunes the pool. Zero values fall back to pgx defaults for MaxConns
// and to the package defaults above for the rest.
type Config struct {
	DSN         string
	MaxConns    int32
	IdleTime    time.Duration
	HealthCheck time.Duration
	PingTimeout time.Duration
}

// DSN builds a postgres:// URL, escaping the credentials.
func DSN(user, password, host string, port int, db, sslMode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + db,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MaxConnIdleTime = orDefault(cfg.IdleTime, defaultIdleTime)
	pc.HealthCheckPeriod = orDefault(cfg.HealthCheck, defaultHealthCheck)

	return pc, nil
}

// New returns a pool that has answered one ping. A pool that cannot reach the
// server is closed before the error is returned.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "postgres.New"

	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.PingTimeout, defaultPingTimeout))
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping %s: %w", op, pc.ConnConfig.Host, err)
	}

	return pool, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
