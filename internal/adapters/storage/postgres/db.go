package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

// Pool: límites del pool de database/sql.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	PingTimeout time.Duration
}

// DefaultPool sirve a un proceso serve (API + agent loop).
var DefaultPool = Pool{
	MaxOpen:     10,
	MaxIdle:     5,
	MaxIdleTime: 5 * time.Minute,
	MaxLifetime: 30 * time.Minute,
	PingTimeout: 3 * time.Second,
}

// Open abre el pool (driver pgx vía database/sql) y verifica conexión.
func Open(dsn string) (*sql.DB, error) {
	return OpenWithPool(context.Background(), dsn, DefaultPool)
}

func OpenWithPool(ctx context.Context, dsn string, p Pool) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
	db.SetConnMaxLifetime(p.MaxLifetime)

	if p.PingTimeout <= 0 {
		p.PingTimeout = DefaultPool.PingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, p.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}
