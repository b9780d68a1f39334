package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/onestopradio/streamcast/pkg/models"
)

// Sentinel errors for port pool operations. Callers branch on these
// with errors.Is.
var (
	ErrNoPortsAvailable = errors.New("no ports available in pool")
	ErrPortNotFound     = errors.New("port not found in pool")
)

// PortPoolRepository manages the fixed pool of allocatable ports.
type PortPoolRepository struct {
	db *DB
}

// NewPortPoolRepository creates a new port pool repository
func NewPortPoolRepository(db *DB) *PortPoolRepository {
	return &PortPoolRepository{db: db}
}

// Initialize ensures one row exists per port in the inclusive range.
// Existing rows, allocated or not, are left untouched, so it is safe to
// call on every process start.
func (r *PortPoolRepository) Initialize(ctx context.Context, rangeStart, rangeEnd int) error {
	if rangeStart > rangeEnd {
		return fmt.Errorf("invalid port range %d-%d", rangeStart, rangeEnd)
	}

	query := `
		INSERT INTO port_pool (port, is_allocated)
		SELECT p, FALSE FROM generate_series($1::int, $2::int) AS p
		ON CONFLICT (port) DO NOTHING
	`

	if _, err := r.db.Pool.Exec(ctx, query, rangeStart, rangeEnd); err != nil {
		return fmt.Errorf("failed to initialize port pool: %w", err)
	}

	return nil
}

// Allocate claims the lowest-numbered free port for userID and returns
// it. The claim is a single atomic statement: the inner select locks
// the candidate row (skipping rows locked by concurrent allocators) and
// the update flips it, so two concurrent callers can never receive the
// same port.
func (r *PortPoolRepository) Allocate(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE port_pool
		SET is_allocated = TRUE, allocated_at = now(), allocated_to_user_id = $1
		WHERE port = (
			SELECT port FROM port_pool
			WHERE NOT is_allocated
			ORDER BY port
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING port
	`

	var port int
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&port)
	if err == pgx.ErrNoRows {
		return 0, ErrNoPortsAvailable
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate port: %w", err)
	}

	return port, nil
}

// Bind associates an allocated port with the stream row that now owns
// it. Done as a second step because the stream id only exists after the
// stream row is inserted.
func (r *PortPoolRepository) Bind(ctx context.Context, port int, streamID string) error {
	query := `UPDATE port_pool SET allocated_to_stream_id = $2 WHERE port = $1 AND is_allocated`

	tag, err := r.db.Pool.Exec(ctx, query, port, streamID)
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", port, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPortNotFound
	}

	return nil
}

// Release returns a port to the pool. Releasing an already-free port is
// a no-op success so retried cleanup never errors; only a port outside
// the pool is an error.
func (r *PortPoolRepository) Release(ctx context.Context, port int) error {
	query := `
		UPDATE port_pool
		SET is_allocated = FALSE, allocated_at = NULL,
		    allocated_to_user_id = NULL, allocated_to_stream_id = NULL
		WHERE port = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, port)
	if err != nil {
		return fmt.Errorf("failed to release port %d: %w", port, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPortNotFound
	}

	return nil
}

// Get retrieves a single port pool entry
func (r *PortPoolRepository) Get(ctx context.Context, port int) (*models.PortAllocation, error) {
	var alloc models.PortAllocation

	query := `
		SELECT port, is_allocated, allocated_at, allocated_to_user_id, allocated_to_stream_id
		FROM port_pool
		WHERE port = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, port).Scan(
		&alloc.Port, &alloc.IsAllocated, &alloc.AllocatedAt, &alloc.UserID, &alloc.StreamID,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrPortNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get port %d: %w", port, err)
	}

	return &alloc, nil
}

// Status returns pool occupancy counts
func (r *PortPoolRepository) Status(ctx context.Context) (*models.PoolStatus, error) {
	var status models.PoolStatus

	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE is_allocated),
		       count(*) FILTER (WHERE NOT is_allocated),
		       COALESCE(min(port), 0),
		       COALESCE(max(port), 0)
		FROM port_pool
	`

	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&status.TotalPorts, &status.AllocatedPorts, &status.AvailablePorts,
		&status.RangeStart, &status.RangeEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool status: %w", err)
	}

	return &status, nil
}
