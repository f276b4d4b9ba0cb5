package database

import (
	"context"
	"time"
)

// PoolHealth is the health endpoint's view of the database: liveness, pool
// pressure, and the schema version the embedded migrations last applied.
type PoolHealth struct {
	Status        string `json:"status"`
	ResponseTime  int64  `json:"response_time_ms"`
	SchemaVersion uint   `json:"schema_version,omitempty"`
	SchemaDirty   bool   `json:"schema_dirty,omitempty"`
	OpenConns     int    `json:"open_conns"`
	InUseConns    int    `json:"in_use_conns"`
	IdleConns     int    `json:"idle_conns"`
	WaitCount     int64  `json:"wait_count"`
	MaxOpenConns  int    `json:"max_open_conns"`
}

// Health pings the database and reports pool statistics. The schema version
// comes from the migrator's bookkeeping table; a dirty flag means a migration
// died halfway and the binary refused to finish startup, so surfacing it here
// gives operators the failing version without shell access.
func (c *Client) Health(ctx context.Context) (*PoolHealth, error) {
	start := time.Now()

	if err := c.PingContext(ctx); err != nil {
		return &PoolHealth{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := c.Stats()
	health := &PoolHealth{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
		OpenConns:    stats.OpenConnections,
		InUseConns:   stats.InUse,
		IdleConns:    stats.Idle,
		WaitCount:    stats.WaitCount,
		MaxOpenConns: stats.MaxOpenConnections,
	}

	// Best effort: the table exists on any database this client migrated.
	var version uint
	var dirty bool
	row := c.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations`)
	if err := row.Scan(&version, &dirty); err == nil {
		health.SchemaVersion = version
		health.SchemaDirty = dirty
	}

	return health, nil
}
