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

// ErrStreamNotFound is returned when a stream does not exist.
var ErrStreamNotFound = errors.New("stream not found")

const streamColumns = `
	id, user_id, station_id, port, source_password, admin_password,
	title, description, genre, stream_url,
	max_listeners, bitrate, sample_rate, public,
	status, is_live, current_listeners, peak_listeners,
	config_version, last_config_update,
	created_at, activated_at, last_connection, last_disconnect
`

// StreamRepository provides persistence for dedicated streams
type StreamRepository struct {
	db *DB
}

// NewStreamRepository creates a new stream repository
func NewStreamRepository(db *DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// Health checks the underlying database connection
func (r *StreamRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

func scanStream(row pgx.Row) (*models.DedicatedStream, error) {
	var s models.DedicatedStream
	err := row.Scan(
		&s.ID, &s.UserID, &s.StationID, &s.Port, &s.SourcePassword, &s.AdminPassword,
		&s.Title, &s.Description, &s.Genre, &s.StreamURL,
		&s.MaxListeners, &s.Bitrate, &s.SampleRate, &s.Public,
		&s.Status, &s.IsLive, &s.CurrentListeners, &s.PeakListeners,
		&s.ConfigVersion, &s.LastConfigUpdate,
		&s.CreatedAt, &s.ActivatedAt, &s.LastConnection, &s.LastDisconnect,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new stream record
func (r *StreamRepository) Create(ctx context.Context, stream *models.DedicatedStream) error {
	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}

	query := `
		INSERT INTO dedicated_streams (
			id, user_id, station_id, port, source_password, admin_password,
			title, description, genre, stream_url,
			max_listeners, bitrate, sample_rate, public, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		stream.ID, stream.UserID, stream.StationID, stream.Port,
		stream.SourcePassword, stream.AdminPassword,
		stream.Title, stream.Description, stream.Genre, stream.StreamURL,
		stream.MaxListeners, stream.Bitrate, stream.SampleRate, stream.Public,
		stream.Status,
	).Scan(&stream.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Get retrieves a stream by ID
func (r *StreamRepository) Get(ctx context.Context, id string) (*models.DedicatedStream, error) {
	query := `SELECT ` + streamColumns + ` FROM dedicated_streams WHERE id = $1`

	stream, err := scanStream(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	return stream, nil
}

// GetActiveByUser retrieves the user's non-terminated stream, if any.
// At most one exists per user; the coordinator enforces this by
// querying here before insert.
func (r *StreamRepository) GetActiveByUser(ctx context.Context, userID string) (*models.DedicatedStream, error) {
	query := `
		SELECT ` + streamColumns + `
		FROM dedicated_streams
		WHERE user_id = $1 AND status <> 'terminated'
		ORDER BY created_at DESC
		LIMIT 1
	`

	stream, err := scanStream(r.db.Pool.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return nil, ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stream: %w", err)
	}

	return stream, nil
}

// ListByStatus retrieves all streams in the given status
func (r *StreamRepository) ListByStatus(ctx context.Context, status models.StreamStatus) ([]*models.DedicatedStream, error) {
	query := `SELECT ` + streamColumns + ` FROM dedicated_streams WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	return collectStreams(rows)
}

func collectStreams(rows pgx.Rows) ([]*models.DedicatedStream, error) {
	var streams []*models.DedicatedStream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stream: %w", err)
		}
		streams = append(streams, stream)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read streams: %w", err)
	}

	return streams, nil
}

// UpdateStatus sets a stream's status and liveness flag
func (r *StreamRepository) UpdateStatus(ctx context.Context, id string, status models.StreamStatus, isLive bool) error {
	query := `UPDATE dedicated_streams SET status = $2, is_live = $3 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, status, isLive)
	if err != nil {
		return fmt.Errorf("failed to update stream status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStreamNotFound
	}

	return nil
}

// MarkActivated moves a stream to active and stamps activation and
// config-update times.
func (r *StreamRepository) MarkActivated(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE dedicated_streams
		SET status = 'active', activated_at = COALESCE(activated_at, $2), last_config_update = $2
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark stream activated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStreamNotFound
	}

	return nil
}

// UpdateConfig updates mutable stream configuration and bumps the
// config version counter.
func (r *StreamRepository) UpdateConfig(ctx context.Context, stream *models.DedicatedStream) error {
	query := `
		UPDATE dedicated_streams
		SET title = $2, description = $3, genre = $4, stream_url = $5,
		    max_listeners = $6, bitrate = $7, public = $8,
		    config_version = config_version + 1
		WHERE id = $1
		RETURNING config_version
	`

	err := r.db.Pool.QueryRow(ctx, query,
		stream.ID, stream.Title, stream.Description, stream.Genre, stream.StreamURL,
		stream.MaxListeners, stream.Bitrate, stream.Public,
	).Scan(&stream.ConfigVersion)

	if err == pgx.ErrNoRows {
		return ErrStreamNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update stream config: %w", err)
	}

	return nil
}

// UpdateLiveState records the monitor's view of a stream: liveness,
// listener counts and connect/disconnect stamps.
func (r *StreamRepository) UpdateLiveState(ctx context.Context, id string, isLive bool, listeners int, at time.Time) error {
	query := `
		UPDATE dedicated_streams
		SET is_live = $2,
		    current_listeners = $3,
		    peak_listeners = GREATEST(peak_listeners, $3),
		    last_connection = CASE WHEN $2 AND NOT is_live THEN $4 ELSE last_connection END,
		    last_disconnect = CASE WHEN NOT $2 AND is_live THEN $4 ELSE last_disconnect END
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, isLive, listeners, at)
	if err != nil {
		return fmt.Errorf("failed to update live state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStreamNotFound
	}

	return nil
}
