package models

import "time"

// StreamSession is one connect/disconnect episode of a source encoder
// against a stream's port. Opened when the monitor observes a stream
// going live, closed when it observes the source disconnect.
type StreamSession struct {
	ID       string `json:"id" db:"id"`
	StreamID string `json:"stream_id" db:"stream_id"`

	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds float64    `json:"duration_seconds" db:"duration_seconds"`

	SourceIP    string `json:"source_ip,omitempty" db:"source_ip"`
	EncoderType string `json:"encoder_type,omitempty" db:"encoder_type"`

	AverageBitrate int     `json:"average_bitrate" db:"average_bitrate"`
	PeakListeners  int     `json:"peak_listeners" db:"peak_listeners"`
	TotalDataMB    float64 `json:"total_data_mb" db:"total_data_mb"`

	DisconnectReason string `json:"disconnect_reason,omitempty" db:"disconnect_reason"`
	WasPlanned       bool   `json:"was_planned" db:"was_planned"`
}

// MonitoringSample is an append-only point-in-time snapshot of a
// stream's health written by the monitoring aggregator.
type MonitoringSample struct {
	ID       string `json:"id" db:"id"`
	StreamID string `json:"stream_id" db:"stream_id"`

	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`

	CurrentListeners int  `json:"current_listeners" db:"current_listeners"`
	IsLive           bool `json:"is_live" db:"is_live"`

	UptimeSeconds  int     `json:"uptime_seconds" db:"uptime_seconds"`
	CurrentBitrate int     `json:"current_bitrate" db:"current_bitrate"`
	BandwidthMbps  float64 `json:"bandwidth_mbps" db:"bandwidth_mbps"`

	CurrentSong string `json:"current_song,omitempty" db:"current_song"`
}

// SessionStats is the aggregate over a stream's sessions within a
// reporting window.
type SessionStats struct {
	TotalSessions      int     `json:"total_sessions"`
	TotalDurationHours float64 `json:"total_duration_hours"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	TotalDataGB        float64 `json:"total_data_gb"`
	PeakListeners      int     `json:"peak_listeners"`
}

// StreamStats is the full statistics payload for a stream: identity and
// current state, session aggregates over the requested window, and the
// most recent monitoring samples for trend display.
type StreamStats struct {
	StreamID         string             `json:"stream_id"`
	Port             int                `json:"port"`
	Status           StreamStatus       `json:"status"`
	IsLive           bool               `json:"is_live"`
	CurrentListeners int                `json:"current_listeners"`
	MaxListeners     int                `json:"max_listeners"`
	Bitrate          int                `json:"bitrate"`
	CreatedAt        time.Time          `json:"created_at"`
	ActivatedAt      *time.Time         `json:"activated_at,omitempty"`
	Sessions         SessionStats       `json:"session_stats"`
	RecentSamples    []MonitoringSample `json:"recent_monitoring"`
}
