package models

import "time"

// StreamStatus is the lifecycle state of a dedicated stream.
type StreamStatus string

// Stream lifecycle states
const (
	StreamStatusProvisioning StreamStatus = "provisioning" // record exists, external config not yet attempted
	StreamStatusActive       StreamStatus = "active"       // mount point configured and serving
	StreamStatusSuspended    StreamStatus = "suspended"    // temporarily disabled, port retained
	StreamStatusError        StreamStatus = "error"        // external configuration attempted and failed
	StreamStatusTerminated   StreamStatus = "terminated"   // permanently closed, port released
)

// Valid reports whether s is a known stream status.
func (s StreamStatus) Valid() bool {
	switch s {
	case StreamStatusProvisioning, StreamStatusActive, StreamStatusSuspended,
		StreamStatusError, StreamStatusTerminated:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s StreamStatus) IsTerminal() bool {
	return s == StreamStatusTerminated
}

// CanTransitionTo reports whether the lifecycle state machine permits
// moving from s to next. Termination is allowed from any live state;
// everything after terminated is frozen.
func (s StreamStatus) CanTransitionTo(next StreamStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StreamStatusTerminated:
		return true
	case StreamStatusActive:
		return s == StreamStatusProvisioning || s == StreamStatusSuspended || s == StreamStatusError
	case StreamStatusSuspended:
		return s == StreamStatusActive
	case StreamStatusError:
		return s == StreamStatusProvisioning || s == StreamStatusError
	}
	return false
}

// DedicatedStream is a user's dedicated broadcast endpoint: one allocated
// port, generated credentials, and the mount configuration pushed to the
// streaming server.
type DedicatedStream struct {
	ID        string  `json:"id" db:"id"`
	UserID    string  `json:"user_id" db:"user_id"`
	StationID *string `json:"station_id,omitempty" db:"station_id"`

	Port           int    `json:"port" db:"port"`
	SourcePassword string `json:"source_password,omitempty" db:"source_password"`
	AdminPassword  string `json:"admin_password,omitempty" db:"admin_password"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
	Genre       string `json:"genre" db:"genre"`
	StreamURL   string `json:"stream_url,omitempty" db:"stream_url"`

	MaxListeners int  `json:"max_listeners" db:"max_listeners"`
	Bitrate      int  `json:"bitrate" db:"bitrate"`
	SampleRate   int  `json:"sample_rate" db:"sample_rate"`
	Public       bool `json:"public" db:"public"`

	Status           StreamStatus `json:"status" db:"status"`
	IsLive           bool         `json:"is_live" db:"is_live"`
	CurrentListeners int          `json:"current_listeners" db:"current_listeners"`
	PeakListeners    int          `json:"peak_listeners" db:"peak_listeners"`

	ConfigVersion    int        `json:"config_version" db:"config_version"`
	LastConfigUpdate *time.Time `json:"last_config_update,omitempty" db:"last_config_update"`

	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	LastConnection *time.Time `json:"last_connection,omitempty" db:"last_connection"`
	LastDisconnect *time.Time `json:"last_disconnect,omitempty" db:"last_disconnect"`
}

// PortAllocation is one entry in the fixed port pool. Rows are created
// once at pool initialization and never deleted; occupancy is driven
// entirely by stream lifecycle transitions.
type PortAllocation struct {
	Port        int        `json:"port" db:"port"`
	IsAllocated bool       `json:"is_allocated" db:"is_allocated"`
	AllocatedAt *time.Time `json:"allocated_at,omitempty" db:"allocated_at"`
	UserID      *string    `json:"user_id,omitempty" db:"allocated_to_user_id"`
	StreamID    *string    `json:"stream_id,omitempty" db:"allocated_to_stream_id"`
}

// PoolStatus summarizes port pool occupancy for the admin endpoint.
type PoolStatus struct {
	TotalPorts     int `json:"total_ports"`
	AllocatedPorts int `json:"allocated_ports"`
	AvailablePorts int `json:"available_ports"`
	RangeStart     int `json:"range_start"`
	RangeEnd       int `json:"range_end"`
}

// StreamingServer is one external streaming daemon instance. The data
// model allows several, but provisioning only ever targets the single
// primary server.
type StreamingServer struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Hostname      string     `json:"hostname" db:"hostname"`
	AdminPort     int        `json:"admin_port" db:"admin_port"`
	AdminPassword string     `json:"-" db:"admin_password"`
	MaxStreams    int        `json:"max_streams" db:"max_streams"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	IsPrimary     bool       `json:"is_primary" db:"is_primary"`
	HealthStatus  string     `json:"health_status" db:"health_status"`
	LastHealthAt  *time.Time `json:"last_health_at,omitempty" db:"last_health_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// ValidBitrates are the bitrates accepted for dedicated streams, in kbps.
var ValidBitrates = []int{64, 96, 128, 192, 256, 320}

// ValidBitrate reports whether kbps is an accepted stream bitrate.
func ValidBitrate(kbps int) bool {
	for _, b := range ValidBitrates {
		if b == kbps {
			return true
		}
	}
	return false
}
