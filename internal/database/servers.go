package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/onestopradio/streamcast/pkg/models"
)

// ErrNoPrimaryServer is returned when no active primary streaming
// server is registered.
var ErrNoPrimaryServer = errors.New("no active primary streaming server")

// ServerRepository manages the streaming server registry
type ServerRepository struct {
	db *DB
}

// NewServerRepository creates a new server repository
func NewServerRepository(db *DB) *ServerRepository {
	return &ServerRepository{db: db}
}

// GetPrimary retrieves the single active primary server that services
// new provisioning requests.
func (r *ServerRepository) GetPrimary(ctx context.Context) (*models.StreamingServer, error) {
	var s models.StreamingServer

	query := `
		SELECT id, name, hostname, admin_port, admin_password, max_streams,
		       is_active, is_primary, health_status, last_health_at, created_at
		FROM streaming_servers
		WHERE is_active AND is_primary
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&s.ID, &s.Name, &s.Hostname, &s.AdminPort, &s.AdminPassword, &s.MaxStreams,
		&s.IsActive, &s.IsPrimary, &s.HealthStatus, &s.LastHealthAt, &s.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNoPrimaryServer
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary server: %w", err)
	}

	return &s, nil
}

// SeedPrimary registers a primary server from configuration if no
// primary exists yet. Idempotent across restarts.
func (r *ServerRepository) SeedPrimary(ctx context.Context, name, hostname string, adminPort int, adminPassword string, maxStreams int) error {
	if _, err := r.GetPrimary(ctx); err == nil {
		return nil
	} else if !errors.Is(err, ErrNoPrimaryServer) {
		return err
	}

	query := `
		INSERT INTO streaming_servers (id, name, hostname, admin_port, admin_password, max_streams, is_active, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		uuid.New().String(), name, hostname, adminPort, adminPassword, maxStreams,
	)
	if err != nil {
		return fmt.Errorf("failed to seed primary server: %w", err)
	}

	return nil
}

// UpdateHealth records a health check result for a server
func (r *ServerRepository) UpdateHealth(ctx context.Context, id, status string, at time.Time) error {
	query := `UPDATE streaming_servers SET health_status = $2, last_health_at = $3 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("failed to update server health: %w", err)
	}

	return nil
}
