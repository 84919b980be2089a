package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"eventpush/internal/config"
)

func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pcfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, pcfg)
}

// PoolConfig applies the DB_POOL_* knobs on top of the DSN.
func PoolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	if cfg.DBPoolMaxConns > 0 {
		pcfg.MaxConns = cfg.DBPoolMaxConns
	}
	if cfg.DBPoolMinConns >= 0 {
		pcfg.MinConns = cfg.DBPoolMinConns
	}

	durations := []struct {
		env string
		raw string
		dst *time.Duration
	}{
		{"DB_POOL_MAX_CONN_LIFETIME", cfg.DBPoolMaxConnLifetime, &pcfg.MaxConnLifetime},
		{"DB_POOL_MAX_CONN_IDLE_TIME", cfg.DBPoolMaxConnIdleTime, &pcfg.MaxConnIdleTime},
		{"DB_POOL_HEALTH_CHECK_PERIOD", cfg.DBPoolHealthCheckPeriod, &pcfg.HealthCheckPeriod},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = v
	}
	return pcfg, nil
}
