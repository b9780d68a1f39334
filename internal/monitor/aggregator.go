// Package monitor polls the streaming server for the live state of
// every active stream and turns what it sees into monitoring samples,
// session records and updated stream rows.
package monitor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/onestopradio/streamcast/internal/config"
	"github.com/onestopradio/streamcast/internal/logging"
	"github.com/onestopradio/streamcast/internal/metrics"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/pkg/models"
)

const leaderLockResource = "monitor:poll"

// StreamStore is the stream persistence the aggregator needs
type StreamStore interface {
	ListByStatus(ctx context.Context, status models.StreamStatus) ([]*models.DedicatedStream, error)
	UpdateLiveState(ctx context.Context, id string, isLive bool, listeners int, at time.Time) error
}

// SessionStore persists sessions and monitoring samples
type SessionStore interface {
	OpenSession(ctx context.Context, session *models.StreamSession) error
	GetOpenSession(ctx context.Context, streamID string) (*models.StreamSession, error)
	TouchSession(ctx context.Context, sessionID string, listeners int, dataMB float64) error
	CloseSession(ctx context.Context, sessionID string, endedAt time.Time, reason string, planned bool) error
	InsertSample(ctx context.Context, sample *models.MonitoringSample) error
}

// PoolStore reports the port pool's occupancy. A nil PoolStore skips
// pool gauge updates.
type PoolStore interface {
	Status(ctx context.Context) (*models.PoolStatus, error)
}

// ServerStore resolves and health-checks the streaming server
type ServerStore interface {
	GetPrimary(ctx context.Context) (*models.StreamingServer, error)
	UpdateHealth(ctx context.Context, id, status string, at time.Time) error
}

// StatusClient is the read side of the streaming server admin interface
type StatusClient interface {
	GetServerStatus(ctx context.Context) (*shoutcast.ServerStatus, error)
	GetStreamInfo(ctx context.Context, streamID string) (*shoutcast.StreamInfo, error)
}

// ClientFactory builds a status client for a registered server
type ClientFactory func(server *models.StreamingServer) StatusClient

// Locker is a distributed lock so only one aggregator instance polls at
// a time. A nil Locker disables leader election.
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// Aggregator is the polling loop
type Aggregator struct {
	streams  StreamStore
	sessions SessionStore
	servers  ServerStore
	pool     PoolStore
	clients  ClientFactory
	locker   Locker

	cfg    config.MonitoringConfig
	logger *logging.Logger
}

// NewAggregator creates a monitoring aggregator
func NewAggregator(streams StreamStore, sessions SessionStore, servers ServerStore, pool PoolStore, clients ClientFactory, locker Locker, cfg config.MonitoringConfig, logger *logging.Logger) *Aggregator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}

	return &Aggregator{
		streams:  streams,
		sessions: sessions,
		servers:  servers,
		pool:     pool,
		clients:  clients,
		locker:   locker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run polls on the configured interval until the context is cancelled
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	a.logger.Infof("Monitoring aggregator started, polling every %v", a.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Monitoring aggregator stopped")
			return
		case <-ticker.C:
			if err := a.Poll(ctx); err != nil {
				a.logger.ErrorWithErr("Monitoring poll failed", err)
			}
		}
	}
}

// Poll runs one polling round. When a locker is configured the round is
// skipped silently if another instance holds the lock.
func (a *Aggregator) Poll(ctx context.Context) error {
	if a.locker != nil {
		acquired, err := a.locker.AcquireLock(ctx, leaderLockResource, a.cfg.LockTTL)
		if err != nil {
			return err
		}
		if !acquired {
			return nil
		}
		defer func() {
			if err := a.locker.ReleaseLock(ctx, leaderLockResource); err != nil {
				a.logger.ErrorWithErr("Failed to release poll lock", err)
			}
		}()
	}

	server, err := a.servers.GetPrimary(ctx)
	if err != nil {
		metrics.MonitorPollErrors.Inc()
		return err
	}

	client := a.clients(server)
	now := time.Now().UTC()

	if _, err := client.GetServerStatus(ctx); err != nil {
		metrics.MonitorPollErrors.Inc()
		if herr := a.servers.UpdateHealth(ctx, server.ID, "unhealthy", now); herr != nil {
			a.logger.ErrorWithErr("Failed to record server health", herr)
		}
		return err
	}
	if err := a.servers.UpdateHealth(ctx, server.ID, "healthy", now); err != nil {
		a.logger.ErrorWithErr("Failed to record server health", err)
	}

	a.updatePoolGauges(ctx)

	streams, err := a.streams.ListByStatus(ctx, models.StreamStatusActive)
	if err != nil {
		metrics.MonitorPollErrors.Inc()
		return err
	}

	for _, stream := range streams {
		if err := a.sampleStream(ctx, client, stream, now); err != nil {
			metrics.MonitorPollErrors.Inc()
			a.logger.WithStreamID(stream.ID).ErrorWithErr("Failed to sample stream", err)
		}
	}

	return nil
}

// updatePoolGauges refreshes the port occupancy gauges. Pool trouble
// must not abort the round, so failures are only logged.
func (a *Aggregator) updatePoolGauges(ctx context.Context) {
	if a.pool == nil {
		return
	}

	status, err := a.pool.Status(ctx)
	if err != nil {
		a.logger.ErrorWithErr("Failed to read pool status", err)
		return
	}

	metrics.PortsAllocated.Set(float64(status.AllocatedPorts))
	metrics.PortsAvailable.Set(float64(status.AvailablePorts))
}

// sampleStream records one stream's current state: a monitoring sample,
// a session open/touch/close depending on the liveness transition, and
// the stream row's live counters.
func (a *Aggregator) sampleStream(ctx context.Context, client StatusClient, stream *models.DedicatedStream, now time.Time) error {
	info, err := client.GetStreamInfo(ctx, strconv.Itoa(stream.Port))
	if errors.Is(err, shoutcast.ErrStreamNotFound) {
		// No mount on the server means no source connected
		info = &shoutcast.StreamInfo{Port: stream.Port}
	} else if err != nil {
		return err
	}

	bandwidthMbps := float64(info.Bitrate) * float64(info.CurrentListeners) / 1000.0

	sample := &models.MonitoringSample{
		StreamID:         stream.ID,
		RecordedAt:       now,
		CurrentListeners: info.CurrentListeners,
		IsLive:           info.IsLive,
		UptimeSeconds:    int(info.UptimeSeconds),
		CurrentBitrate:   info.Bitrate,
		BandwidthMbps:    bandwidthMbps,
		CurrentSong:      info.CurrentSong,
	}
	if err := a.sessions.InsertSample(ctx, sample); err != nil {
		return err
	}
	metrics.MonitorSamplesTotal.Inc()

	open, err := a.sessions.GetOpenSession(ctx, stream.ID)
	if err != nil {
		return err
	}

	switch {
	case info.IsLive && open == nil:
		session := &models.StreamSession{
			StreamID:       stream.ID,
			StartedAt:      now,
			AverageBitrate: info.Bitrate,
		}
		if err := a.sessions.OpenSession(ctx, session); err != nil {
			return err
		}
		metrics.SessionsOpenedTotal.Inc()
		a.logger.LogStreamEvent(stream.ID, "session_opened", string(stream.Status), nil)

	case info.IsLive && open != nil:
		dataMB := now.Sub(open.StartedAt).Seconds() * float64(info.Bitrate) / 8 / 1024
		if err := a.sessions.TouchSession(ctx, open.ID, info.CurrentListeners, dataMB); err != nil {
			return err
		}

	case !info.IsLive && open != nil:
		if err := a.sessions.CloseSession(ctx, open.ID, now, "source_disconnected", false); err != nil {
			return err
		}
		metrics.SessionsClosedTotal.Inc()
		a.logger.LogStreamEvent(stream.ID, "session_closed", string(stream.Status), nil)
	}

	return a.streams.UpdateLiveState(ctx, stream.ID, info.IsLive, info.CurrentListeners, now)
}
