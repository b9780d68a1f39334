package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the provisioning tables and indexes. Every
// statement is idempotent so Migrate is safe to run on each process
// start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS port_pool (
		port INTEGER PRIMARY KEY,
		is_allocated BOOLEAN NOT NULL DEFAULT FALSE,
		allocated_at TIMESTAMPTZ,
		allocated_to_user_id TEXT,
		allocated_to_stream_id TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS dedicated_streams (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		station_id TEXT,
		port INTEGER NOT NULL REFERENCES port_pool(port),
		source_password TEXT NOT NULL,
		admin_password TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT 'Various',
		stream_url TEXT NOT NULL DEFAULT '',
		max_listeners INTEGER NOT NULL DEFAULT 100,
		bitrate INTEGER NOT NULL DEFAULT 128,
		sample_rate INTEGER NOT NULL DEFAULT 44100,
		public BOOLEAN NOT NULL DEFAULT TRUE,
		status TEXT NOT NULL DEFAULT 'provisioning',
		is_live BOOLEAN NOT NULL DEFAULT FALSE,
		current_listeners INTEGER NOT NULL DEFAULT 0,
		peak_listeners INTEGER NOT NULL DEFAULT 0,
		config_version INTEGER NOT NULL DEFAULT 1,
		last_config_update TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		activated_at TIMESTAMPTZ,
		last_connection TIMESTAMPTZ,
		last_disconnect TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS stream_sessions (
		id UUID PRIMARY KEY,
		stream_id UUID NOT NULL REFERENCES dedicated_streams(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at TIMESTAMPTZ,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		source_ip TEXT NOT NULL DEFAULT '',
		encoder_type TEXT NOT NULL DEFAULT '',
		average_bitrate INTEGER NOT NULL DEFAULT 0,
		peak_listeners INTEGER NOT NULL DEFAULT 0,
		total_data_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
		disconnect_reason TEXT NOT NULL DEFAULT '',
		was_planned BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS stream_monitoring (
		id UUID PRIMARY KEY,
		stream_id UUID NOT NULL REFERENCES dedicated_streams(id) ON DELETE CASCADE,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		current_listeners INTEGER NOT NULL DEFAULT 0,
		is_live BOOLEAN NOT NULL,
		uptime_seconds INTEGER NOT NULL DEFAULT 0,
		current_bitrate INTEGER NOT NULL DEFAULT 0,
		bandwidth_mbps DOUBLE PRECISION NOT NULL DEFAULT 0,
		current_song TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS streaming_servers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		hostname TEXT NOT NULL,
		admin_port INTEGER NOT NULL DEFAULT 8000,
		admin_password TEXT NOT NULL,
		max_streams INTEGER NOT NULL DEFAULT 100,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		health_status TEXT NOT NULL DEFAULT 'unknown',
		last_health_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS webhooks (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		url TEXT NOT NULL,
		events JSONB NOT NULL DEFAULT '{}',
		secret TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id UUID PRIMARY KEY,
		webhook_id UUID NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
		event TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		status_code INTEGER NOT NULL DEFAULT 0,
		response_body TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,

	// A released port is reused by later streams, so terminated rows may
	// share a port value; only one live stream may hold it at a time.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_dedicated_streams_port_live ON dedicated_streams (port) WHERE status <> 'terminated'`,

	// Hot lookup paths: a user's non-terminated stream, and
	// stream-id -> samples by time.
	`CREATE INDEX IF NOT EXISTS idx_port_pool_free ON port_pool (port) WHERE NOT is_allocated`,
	`CREATE INDEX IF NOT EXISTS idx_dedicated_streams_user ON dedicated_streams (user_id) WHERE status <> 'terminated'`,
	`CREATE INDEX IF NOT EXISTS idx_dedicated_streams_status ON dedicated_streams (status)`,
	`CREATE INDEX IF NOT EXISTS idx_stream_sessions_stream ON stream_sessions (stream_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stream_monitoring_stream ON stream_monitoring (stream_id, recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_streaming_servers_primary ON streaming_servers (is_primary) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_pending ON webhook_deliveries (next_retry_at) WHERE status = 'pending'`,
}

// Migrate applies the schema. It is idempotent and runs on every
// process start.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
