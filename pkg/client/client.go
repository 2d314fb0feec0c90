// Package client implements the tsaccess client facade: a single object
// aggregating schema utilities, the write path, the read path and the
// analysis helpers over one shared pgx connection pool.
//
// All operations are synchronous and issue one or more round trips to the
// external database. The library performs no retries of its own; failures
// surface to the caller as structured errors with the driver error as cause.
package client

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quantpipe/tsaccess/pkg/config"
	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/logger"
)

// Client is the public surface of tsaccess. It owns a pooled connection to
// one TimescaleDB/PostgreSQL endpoint for the life of the process.
type Client struct {
	pool *pgxpool.Pool
	cfg  *config.Config
	log  *zap.Logger
}

// New creates a client from a full configuration and verifies connectivity
// with an initial ping.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to parse database URL")
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}

	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping database")
	}

	return &Client{
		pool: pool,
		cfg:  cfg,
		log:  logger.With(zap.String("component", "tsaccess")),
	}, nil
}

// Connect creates a client for the given database URL with default settings.
func Connect(ctx context.Context, dbURL string) (*Client, error) {
	return New(ctx, config.New(dbURL))
}

// Close releases the underlying connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Pool exposes the underlying pgx pool for callers that need direct access.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// CheckConnection tests whether the database is reachable. It is the sole
// operation that converts failure into a boolean instead of an error, so
// callers can probe availability without error handling.
func (c *Client) CheckConnection(ctx context.Context) bool {
	var one int
	if err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		c.log.Debug("connection check failed", zap.Error(err))
		return false
	}
	return one == 1
}

// wrapDBError classifies a driver error: integrity-constraint violations map
// to the conflict type, everything else to the given fallback. The pgx cause
// stays reachable through Unwrap.
func wrapDBError(err error, fallback errors.ErrorType, message string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return errors.Wrap(err, errors.ErrorTypeConflict, message)
	}
	return errors.Wrap(err, fallback, message)
}
