package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/onestopradio/streamcast/pkg/models"
)

// SessionRepository provides persistence for stream sessions and
// monitoring samples.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// OpenSession creates a session record for a source that just connected
func (r *SessionRepository) OpenSession(ctx context.Context, session *models.StreamSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stream_sessions (id, stream_id, started_at, source_ip, encoder_type, average_bitrate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID, session.StreamID, session.StartedAt,
		session.SourceIP, session.EncoderType, session.AverageBitrate,
	)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	return nil
}

// GetOpenSession retrieves the stream's session without an end time, if any
func (r *SessionRepository) GetOpenSession(ctx context.Context, streamID string) (*models.StreamSession, error) {
	var s models.StreamSession

	query := `
		SELECT id, stream_id, started_at, ended_at, duration_seconds,
		       source_ip, encoder_type, average_bitrate,
		       peak_listeners, total_data_mb, disconnect_reason, was_planned
		FROM stream_sessions
		WHERE stream_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`

	err := r.db.Pool.QueryRow(ctx, query, streamID).Scan(
		&s.ID, &s.StreamID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds,
		&s.SourceIP, &s.EncoderType, &s.AverageBitrate,
		&s.PeakListeners, &s.TotalDataMB, &s.DisconnectReason, &s.WasPlanned,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	return &s, nil
}

// TouchSession updates a running session's running counters
func (r *SessionRepository) TouchSession(ctx context.Context, sessionID string, listeners int, dataMB float64) error {
	query := `
		UPDATE stream_sessions
		SET peak_listeners = GREATEST(peak_listeners, $2), total_data_mb = $3
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, listeners, dataMB)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// CloseSession finalizes a session after the source disconnected
func (r *SessionRepository) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, reason string, planned bool) error {
	query := `
		UPDATE stream_sessions
		SET ended_at = $2,
		    duration_seconds = EXTRACT(EPOCH FROM ($2 - started_at)),
		    disconnect_reason = $3,
		    was_planned = $4
		WHERE id = $1 AND ended_at IS NULL
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, endedAt, reason, planned)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	return nil
}

// SessionStats aggregates a stream's sessions since the given time
func (r *SessionRepository) SessionStats(ctx context.Context, streamID string, since time.Time) (*models.SessionStats, error) {
	var (
		stats         models.SessionStats
		totalSeconds  float64
		avgSeconds    float64
		totalDataMB   float64
	)

	query := `
		SELECT count(*),
		       COALESCE(sum(duration_seconds), 0),
		       COALESCE(avg(duration_seconds), 0),
		       COALESCE(sum(total_data_mb), 0),
		       COALESCE(max(peak_listeners), 0)
		FROM stream_sessions
		WHERE stream_id = $1 AND started_at >= $2
	`

	err := r.db.Pool.QueryRow(ctx, query, streamID, since).Scan(
		&stats.TotalSessions, &totalSeconds, &avgSeconds, &totalDataMB, &stats.PeakListeners,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	stats.TotalDurationHours = totalSeconds / 3600
	stats.AvgDurationMinutes = avgSeconds / 60
	stats.TotalDataGB = totalDataMB / 1024

	return &stats, nil
}

// InsertSample appends a monitoring sample
func (r *SessionRepository) InsertSample(ctx context.Context, sample *models.MonitoringSample) error {
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stream_monitoring (
			id, stream_id, recorded_at, current_listeners, is_live,
			uptime_seconds, current_bitrate, bandwidth_mbps, current_song
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		sample.ID, sample.StreamID, sample.RecordedAt,
		sample.CurrentListeners, sample.IsLive,
		sample.UptimeSeconds, sample.CurrentBitrate, sample.BandwidthMbps,
		sample.CurrentSong,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	return nil
}

// RecentSamples retrieves the newest samples for a stream since the
// given time, newest first.
func (r *SessionRepository) RecentSamples(ctx context.Context, streamID string, since time.Time, limit int) ([]models.MonitoringSample, error) {
	query := `
		SELECT id, stream_id, recorded_at, current_listeners, is_live,
		       uptime_seconds, current_bitrate, bandwidth_mbps, current_song
		FROM stream_monitoring
		WHERE stream_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, streamID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}
	defer rows.Close()

	return collectSamples(rows)
}

func collectSamples(rows pgx.Rows) ([]models.MonitoringSample, error) {
	var samples []models.MonitoringSample
	for rows.Next() {
		var s models.MonitoringSample
		err := rows.Scan(
			&s.ID, &s.StreamID, &s.RecordedAt, &s.CurrentListeners, &s.IsLive,
			&s.UptimeSeconds, &s.CurrentBitrate, &s.BandwidthMbps, &s.CurrentSong,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	return samples, nil
}
