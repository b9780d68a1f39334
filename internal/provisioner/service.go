// Package provisioner coordinates the dedicated stream lifecycle across
// three systems that cannot be updated atomically together: the port
// pool, the stream store and the external streaming server. Local state
// is authoritative; the streaming server is made to follow it, either
// inline or through the reconcile queue.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onestopradio/streamcast/internal/config"
	"github.com/onestopradio/streamcast/internal/database"
	"github.com/onestopradio/streamcast/internal/logging"
	"github.com/onestopradio/streamcast/internal/metrics"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/internal/tracing"
	"github.com/onestopradio/streamcast/pkg/models"
)

const (
	defaultGenre       = "Various"
	defaultStatsDays   = 30
	defaultSampleLimit = 100
	maxTitleLength     = 255
	maxListenersCap    = 1000
)

// PortPool claims, binds and releases ports
type PortPool interface {
	Allocate(ctx context.Context, userID string) (int, error)
	Bind(ctx context.Context, port int, streamID string) error
	Release(ctx context.Context, port int) error
}

// StreamStore persists dedicated stream records
type StreamStore interface {
	Create(ctx context.Context, stream *models.DedicatedStream) error
	Get(ctx context.Context, id string) (*models.DedicatedStream, error)
	GetActiveByUser(ctx context.Context, userID string) (*models.DedicatedStream, error)
	ListByStatus(ctx context.Context, status models.StreamStatus) ([]*models.DedicatedStream, error)
	UpdateStatus(ctx context.Context, id string, status models.StreamStatus, isLive bool) error
	MarkActivated(ctx context.Context, id string, at time.Time) error
	UpdateConfig(ctx context.Context, stream *models.DedicatedStream) error
}

// SessionStore reads session aggregates and monitoring samples
type SessionStore interface {
	SessionStats(ctx context.Context, streamID string, since time.Time) (*models.SessionStats, error)
	RecentSamples(ctx context.Context, streamID string, since time.Time, limit int) ([]models.MonitoringSample, error)
}

// ServerStore resolves the streaming server that services provisioning
type ServerStore interface {
	GetPrimary(ctx context.Context) (*models.StreamingServer, error)
}

// StreamAdmin is the subset of the streaming server admin interface the
// coordinator drives. *shoutcast.Client satisfies it.
type StreamAdmin interface {
	CreateStream(ctx context.Context, cfg shoutcast.StreamConfig) error
	RemoveStream(ctx context.Context, streamID string) error
	UpdateMetadata(ctx context.Context, streamID, title, genre, streamURL string) error
	KickSource(ctx context.Context, streamID string) error
}

// ClientFactory builds an admin client for a registered server
type ClientFactory func(server *models.StreamingServer) StreamAdmin

// ReconcilePublisher enqueues a stream for background reconfiguration
type ReconcilePublisher interface {
	PublishReconcile(ctx context.Context, streamID string, attempt int) error
}

// Notifier fans a lifecycle event out to webhook subscribers
type Notifier interface {
	NotifyStreamEvent(ctx context.Context, event string, stream *models.DedicatedStream) error
}

// Deps collects the coordinator's collaborators. Queue and Notifier may
// be nil; the coordinator then skips reconcile publishing and webhooks.
type Deps struct {
	Pool     PortPool
	Streams  StreamStore
	Sessions SessionStore
	Servers  ServerStore
	Clients  ClientFactory
	Queue    ReconcilePublisher
	Notifier Notifier

	Provisioning   config.ProvisioningConfig
	PublicHostname string
	SampleLimit    int

	Logger *logging.Logger
}

// Coordinator owns every dedicated stream lifecycle transition
type Coordinator struct {
	pool     PortPool
	streams  StreamStore
	sessions SessionStore
	servers  ServerStore
	clients  ClientFactory
	queue    ReconcilePublisher
	notifier Notifier

	cfg            config.ProvisioningConfig
	publicHostname string
	sampleLimit    int

	logger *logging.Logger
}

// NewCoordinator creates a lifecycle coordinator
func NewCoordinator(deps Deps) *Coordinator {
	sampleLimit := deps.SampleLimit
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}

	return &Coordinator{
		pool:           deps.Pool,
		streams:        deps.Streams,
		sessions:       deps.Sessions,
		servers:        deps.Servers,
		clients:        deps.Clients,
		queue:          deps.Queue,
		notifier:       deps.Notifier,
		cfg:            deps.Provisioning,
		publicHostname: deps.PublicHostname,
		sampleLimit:    sampleLimit,
		logger:         deps.Logger,
	}
}

// streamSID is the admin-interface stream id: the port number as a string
func streamSID(port int) string {
	return strconv.Itoa(port)
}

// ProvisionRequest is a request for a new dedicated stream. Zero-valued
// optional fields take the configured defaults.
type ProvisionRequest struct {
	UserID       string
	Title        string
	Description  string
	Genre        string
	StationID    *string
	MaxListeners int
	Bitrate      int
	Public       *bool
}

func (c *Coordinator) validateProvision(req *ProvisionRequest) error {
	if req.UserID == "" {
		return newError(KindInvalidArgument, "user id is required", nil)
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return newError(KindInvalidArgument, "title is required", nil)
	}
	if len(req.Title) > maxTitleLength {
		return newError(KindInvalidArgument, fmt.Sprintf("title exceeds %d characters", maxTitleLength), nil)
	}

	if req.MaxListeners == 0 {
		req.MaxListeners = c.cfg.DefaultMaxListeners
	}
	if req.MaxListeners < 1 || req.MaxListeners > maxListenersCap {
		return newError(KindInvalidArgument, fmt.Sprintf("max_listeners must be between 1 and %d", maxListenersCap), nil)
	}

	if req.Bitrate == 0 {
		req.Bitrate = c.cfg.DefaultBitrate
	}
	if !models.ValidBitrate(req.Bitrate) {
		return newError(KindInvalidArgument, fmt.Sprintf("bitrate must be one of %v", models.ValidBitrates), nil)
	}

	if req.Genre == "" {
		req.Genre = defaultGenre
	}

	return nil
}

// Provision creates a dedicated stream for the user. If the user already
// has a non-terminated stream it is returned as-is and created is false.
// A port claimed for a stream that fails to persist is released before
// returning; a stream that persists but cannot be configured on the
// server is returned in error status with a reconcile task queued.
func (c *Coordinator) Provision(ctx context.Context, req ProvisionRequest) (stream *models.DedicatedStream, created bool, err error) {
	span, ctx := tracing.StartSpan(ctx, "provisioner.Provision")
	defer tracing.FinishSpan(span)
	defer func() { tracing.LogError(span, err) }()

	if err := c.validateProvision(&req); err != nil {
		return nil, false, err
	}

	existing, err := c.streams.GetActiveByUser(ctx, req.UserID)
	if err == nil {
		c.logger.WithUserID(req.UserID).WithStreamID(existing.ID).Info("User already has a dedicated stream")
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrStreamNotFound) {
		return nil, false, fmt.Errorf("failed to check for existing stream: %w", err)
	}

	port, err := c.pool.Allocate(ctx, req.UserID)
	if errors.Is(err, database.ErrNoPortsAvailable) {
		metrics.ProvisionsTotal.WithLabelValues("no_capacity").Inc()
		metrics.PortAllocationsTotal.WithLabelValues("allocate", "exhausted").Inc()
		return nil, false, newError(KindNoCapacity, "port pool exhausted", err)
	}
	if err != nil {
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to allocate port: %w", err)
	}
	metrics.PortAllocationsTotal.WithLabelValues("allocate", "success").Inc()
	c.logger.LogPortAllocation("allocate", port, req.UserID, nil)
	span.SetTag("stream.port", port)

	stream, err = c.buildStream(req, port)
	if err != nil {
		c.releasePort(ctx, port, req.UserID)
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}

	if err := c.streams.Create(ctx, stream); err != nil {
		c.releasePort(ctx, port, req.UserID)
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to persist stream: %w", err)
	}

	if err := c.pool.Bind(ctx, port, stream.ID); err != nil {
		if serr := c.streams.UpdateStatus(ctx, stream.ID, models.StreamStatusTerminated, false); serr != nil {
			c.logger.WithStreamID(stream.ID).ErrorWithErr("Failed to terminate stream after bind failure", serr)
		}
		c.releasePort(ctx, port, req.UserID)
		metrics.ProvisionsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to bind port %d: %w", port, err)
	}

	c.notify(ctx, models.WebhookEventStreamProvisioned, stream)

	if err := c.configureServer(ctx, stream); err != nil {
		// The local record is kept and the port stays claimed; the
		// reconcile consumer retries the server side.
		if serr := c.streams.UpdateStatus(ctx, stream.ID, models.StreamStatusError, false); serr != nil {
			c.logger.WithStreamID(stream.ID).ErrorWithErr("Failed to flag stream after configuration failure", serr)
		}
		stream.Status = models.StreamStatusError
		c.enqueueReconcile(ctx, stream.ID, 1)
		c.notify(ctx, models.WebhookEventStreamError, stream)
		metrics.ProvisionsTotal.WithLabelValues("degraded").Inc()
		c.logger.WithStreamID(stream.ID).WithPort(port).ErrorWithErr(
			"Stream persisted but server configuration failed", err)
		return stream, true, nil
	}

	now := time.Now().UTC()
	if err := c.streams.MarkActivated(ctx, stream.ID, now); err != nil {
		c.enqueueReconcile(ctx, stream.ID, 1)
		return nil, false, fmt.Errorf("failed to activate stream: %w", err)
	}
	stream.Status = models.StreamStatusActive
	stream.ActivatedAt = &now

	metrics.ProvisionsTotal.WithLabelValues("success").Inc()
	metrics.LifecycleTransitionsTotal.WithLabelValues("provisioning_to_active").Inc()
	c.notify(ctx, models.WebhookEventStreamActivated, stream)
	c.logger.LogStreamEvent(stream.ID, "provisioned", string(stream.Status), map[string]interface{}{
		"port":    port,
		"user_id": req.UserID,
	})

	return stream, true, nil
}

func (c *Coordinator) buildStream(req ProvisionRequest, port int) (*models.DedicatedStream, error) {
	sourcePassword, err := GeneratePassword(c.cfg.PasswordLength)
	if err != nil {
		return nil, err
	}
	adminPassword, err := GeneratePassword(c.cfg.PasswordLength)
	if err != nil {
		return nil, err
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	return &models.DedicatedStream{
		UserID:         req.UserID,
		StationID:      req.StationID,
		Port:           port,
		SourcePassword: sourcePassword,
		AdminPassword:  adminPassword,
		Title:          req.Title,
		Description:    req.Description,
		Genre:          req.Genre,
		StreamURL:      fmt.Sprintf("http://%s:%d", c.publicHostname, port),
		MaxListeners:   req.MaxListeners,
		Bitrate:        req.Bitrate,
		SampleRate:     c.cfg.DefaultSampleRate,
		Public:         public,
		Status:         models.StreamStatusProvisioning,
	}, nil
}

// GetUserStream returns the user's non-terminated stream
func (c *Coordinator) GetUserStream(ctx context.Context, userID string) (*models.DedicatedStream, error) {
	stream, err := c.streams.GetActiveByUser(ctx, userID)
	if errors.Is(err, database.ErrStreamNotFound) {
		return nil, newError(KindNotFound, "user has no dedicated stream", err)
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// GetStream returns a stream by id
func (c *Coordinator) GetStream(ctx context.Context, streamID string) (*models.DedicatedStream, error) {
	stream, err := c.streams.Get(ctx, streamID)
	if errors.Is(err, database.ErrStreamNotFound) {
		return nil, newError(KindNotFound, "stream not found", err)
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Suspend temporarily disables an active stream. The port stays claimed.
// Disconnecting the source on the server is best effort; the local
// status flip alone decides the outcome.
func (c *Coordinator) Suspend(ctx context.Context, streamID, reason string) error {
	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		return err
	}

	if !stream.Status.CanTransitionTo(models.StreamStatusSuspended) {
		return newError(KindInvalidTransition,
			fmt.Sprintf("cannot suspend stream in status %q", stream.Status), nil)
	}

	if err := c.streams.UpdateStatus(ctx, streamID, models.StreamStatusSuspended, false); err != nil {
		return fmt.Errorf("failed to suspend stream: %w", err)
	}
	stream.Status = models.StreamStatusSuspended
	metrics.LifecycleTransitionsTotal.WithLabelValues("active_to_suspended").Inc()

	if client, cerr := c.adminClient(ctx); cerr == nil {
		if kerr := client.KickSource(ctx, streamSID(stream.Port)); kerr != nil {
			c.logger.WithStreamID(streamID).ErrorWithErr("Failed to kick source on suspend", kerr)
		}
	} else {
		c.logger.WithStreamID(streamID).ErrorWithErr("No server reachable to kick source on suspend", cerr)
	}

	c.notify(ctx, models.WebhookEventStreamSuspended, stream)
	c.logger.LogStreamEvent(streamID, "suspended", string(stream.Status), map[string]interface{}{
		"reason": reason,
	})

	return nil
}

// Resume re-enables a suspended stream. The server configuration is
// pushed again; if that fails the stream stays suspended and a reconcile
// task is queued.
func (c *Coordinator) Resume(ctx context.Context, streamID string) error {
	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		return err
	}

	if stream.Status != models.StreamStatusSuspended {
		return newError(KindInvalidTransition,
			fmt.Sprintf("cannot resume stream in status %q", stream.Status), nil)
	}

	if err := c.configureServer(ctx, stream); err != nil {
		c.enqueueReconcile(ctx, stream.ID, 1)
		return err
	}

	now := time.Now().UTC()
	if err := c.streams.MarkActivated(ctx, streamID, now); err != nil {
		return fmt.Errorf("failed to resume stream: %w", err)
	}
	stream.Status = models.StreamStatusActive
	metrics.LifecycleTransitionsTotal.WithLabelValues("suspended_to_active").Inc()

	c.notify(ctx, models.WebhookEventStreamActivated, stream)
	c.logger.LogStreamEvent(streamID, "resumed", string(stream.Status), nil)

	return nil
}

// Terminate permanently closes a stream and releases its port. Calling
// it on an already-terminated stream is a no-op success. The port is
// only released after the status flip so a crashed terminate never
// leaves a reusable port attached to a live stream.
func (c *Coordinator) Terminate(ctx context.Context, streamID string) error {
	span, ctx := tracing.StartSpan(ctx, "provisioner.Terminate")
	defer tracing.FinishSpan(span)

	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		tracing.LogError(span, err)
		return err
	}
	tracing.SetStreamTags(span, stream.ID, stream.Port)

	if stream.Status == models.StreamStatusTerminated {
		return nil
	}

	if err := c.streams.UpdateStatus(ctx, streamID, models.StreamStatusTerminated, false); err != nil {
		return fmt.Errorf("failed to terminate stream: %w", err)
	}
	stream.Status = models.StreamStatusTerminated
	metrics.LifecycleTransitionsTotal.WithLabelValues("terminated").Inc()

	if err := c.pool.Release(ctx, stream.Port); err != nil {
		metrics.PortAllocationsTotal.WithLabelValues("release", "error").Inc()
		c.logger.LogPortAllocation("release", stream.Port, stream.UserID, err)
		return fmt.Errorf("stream terminated but port %d not released: %w", stream.Port, err)
	}
	metrics.PortAllocationsTotal.WithLabelValues("release", "success").Inc()
	c.logger.LogPortAllocation("release", stream.Port, stream.UserID, nil)

	if client, cerr := c.adminClient(ctx); cerr == nil {
		sid := streamSID(stream.Port)
		if kerr := client.KickSource(ctx, sid); kerr != nil {
			c.logger.WithStreamID(streamID).ErrorWithErr("Failed to kick source on terminate", kerr)
		}
		if rerr := client.RemoveStream(ctx, sid); rerr != nil {
			c.logger.WithStreamID(streamID).ErrorWithErr("Failed to remove stream from server", rerr)
		}
	} else {
		c.logger.WithStreamID(streamID).ErrorWithErr("No server reachable to remove stream on terminate", cerr)
	}

	c.notify(ctx, models.WebhookEventStreamTerminated, stream)
	c.logger.LogStreamEvent(streamID, "terminated", string(stream.Status), map[string]interface{}{
		"port": stream.Port,
	})

	return nil
}

// UpdateRequest carries partial stream configuration changes. Nil fields
// are left untouched.
type UpdateRequest struct {
	Title        *string
	Description  *string
	Genre        *string
	MaxListeners *int
	Bitrate      *int
	Public       *bool
}

// Update applies configuration changes to a non-terminated stream. The
// local commit is authoritative and is never rolled back: metadata is
// pushed to the server inline, and changes that need a full mount
// reconfiguration go through the reconcile queue.
func (c *Coordinator) Update(ctx context.Context, streamID string, req UpdateRequest) (*models.DedicatedStream, error) {
	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	if stream.Status.IsTerminal() {
		return nil, newError(KindInvalidTransition, "cannot update a terminated stream", nil)
	}

	metadataDirty := false
	needsReconfig := false

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, newError(KindInvalidArgument,
				fmt.Sprintf("title must be 1-%d characters", maxTitleLength), nil)
		}
		stream.Title = title
		metadataDirty = true
	}
	if req.Description != nil {
		stream.Description = *req.Description
	}
	if req.Genre != nil {
		stream.Genre = *req.Genre
		metadataDirty = true
	}
	if req.MaxListeners != nil {
		if *req.MaxListeners < 1 || *req.MaxListeners > maxListenersCap {
			return nil, newError(KindInvalidArgument,
				fmt.Sprintf("max_listeners must be between 1 and %d", maxListenersCap), nil)
		}
		stream.MaxListeners = *req.MaxListeners
		needsReconfig = true
	}
	if req.Bitrate != nil {
		if !models.ValidBitrate(*req.Bitrate) {
			return nil, newError(KindInvalidArgument,
				fmt.Sprintf("bitrate must be one of %v", models.ValidBitrates), nil)
		}
		stream.Bitrate = *req.Bitrate
		needsReconfig = true
	}
	if req.Public != nil {
		stream.Public = *req.Public
		needsReconfig = true
	}

	if err := c.streams.UpdateConfig(ctx, stream); err != nil {
		if errors.Is(err, database.ErrStreamNotFound) {
			return nil, newError(KindNotFound, "stream not found", err)
		}
		return nil, fmt.Errorf("failed to update stream config: %w", err)
	}

	if stream.Status == models.StreamStatusActive {
		if metadataDirty {
			c.pushMetadata(ctx, stream)
		}
		if needsReconfig {
			c.enqueueReconcile(ctx, stream.ID, 1)
		}
	}

	c.logger.LogStreamEvent(streamID, "config_updated", string(stream.Status), map[string]interface{}{
		"config_version": stream.ConfigVersion,
	})

	return stream, nil
}

func (c *Coordinator) pushMetadata(ctx context.Context, stream *models.DedicatedStream) {
	client, err := c.adminClient(ctx)
	if err != nil {
		c.logger.WithStreamID(stream.ID).ErrorWithErr("No server reachable for metadata update", err)
		c.enqueueReconcile(ctx, stream.ID, 1)
		return
	}

	if err := client.UpdateMetadata(ctx, streamSID(stream.Port), stream.Title, stream.Genre, stream.StreamURL); err != nil {
		c.logger.WithStreamID(stream.ID).ErrorWithErr("Failed to push metadata to server", err)
		c.enqueueReconcile(ctx, stream.ID, 1)
	}
}

// RetryConfiguration re-pushes a stream's configuration to the streaming
// server. Used by the reconcile consumer and the manual retry endpoint.
// Streams in provisioning or error status are promoted to active on
// success; suspended streams are reconfigured but stay suspended.
func (c *Coordinator) RetryConfiguration(ctx context.Context, streamID string) error {
	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		return err
	}

	if stream.Status == models.StreamStatusTerminated {
		return newError(KindInvalidTransition, "cannot reconfigure a terminated stream", nil)
	}

	if err := c.configureServer(ctx, stream); err != nil {
		if stream.Status.CanTransitionTo(models.StreamStatusError) {
			if serr := c.streams.UpdateStatus(ctx, streamID, models.StreamStatusError, false); serr != nil {
				c.logger.WithStreamID(streamID).ErrorWithErr("Failed to flag stream after retry failure", serr)
			}
		}
		return err
	}

	if stream.Status == models.StreamStatusProvisioning || stream.Status == models.StreamStatusError {
		now := time.Now().UTC()
		if err := c.streams.MarkActivated(ctx, streamID, now); err != nil {
			return fmt.Errorf("failed to activate stream after retry: %w", err)
		}
		stream.Status = models.StreamStatusActive
		metrics.LifecycleTransitionsTotal.WithLabelValues("error_to_active").Inc()
		c.notify(ctx, models.WebhookEventStreamActivated, stream)
		c.logger.LogStreamEvent(streamID, "configuration_recovered", string(stream.Status), nil)
	}

	return nil
}

// GetStreamStats assembles the statistics payload for a stream over the
// last days days. days defaults to 30 and recent samples are capped at
// the configured sample limit.
func (c *Coordinator) GetStreamStats(ctx context.Context, streamID string, days int) (*models.StreamStats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}

	stream, err := c.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)

	sessions, err := c.sessions.SessionStats(ctx, streamID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	samples, err := c.sessions.RecentSamples(ctx, streamID, since, c.sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitoring samples: %w", err)
	}

	return &models.StreamStats{
		StreamID:         stream.ID,
		Port:             stream.Port,
		Status:           stream.Status,
		IsLive:           stream.IsLive,
		CurrentListeners: stream.CurrentListeners,
		MaxListeners:     stream.MaxListeners,
		Bitrate:          stream.Bitrate,
		CreatedAt:        stream.CreatedAt,
		ActivatedAt:      stream.ActivatedAt,
		Sessions:         *sessions,
		RecentSamples:    samples,
	}, nil
}

// configureServer pushes the stream's full mount configuration to the
// primary streaming server.
func (c *Coordinator) configureServer(ctx context.Context, stream *models.DedicatedStream) error {
	server, err := c.servers.GetPrimary(ctx)
	if err != nil {
		metrics.ShoutcastRequestsTotal.WithLabelValues("addstream", "unreachable").Inc()
		return newError(KindUnreachable, "no streaming server available", err)
	}

	client := c.clients(server)
	start := time.Now()
	err = client.CreateStream(ctx, shoutcast.StreamConfig{
		StreamID:       streamSID(stream.Port),
		Port:           stream.Port,
		SourcePassword: stream.SourcePassword,
		AdminPassword:  stream.AdminPassword,
		MaxListeners:   stream.MaxListeners,
		Bitrate:        stream.Bitrate,
		Title:          stream.Title,
		Genre:          stream.Genre,
		URL:            stream.StreamURL,
		Public:         stream.Public,
	})
	c.logger.LogShoutcastRequest("addstream", server.Hostname, time.Since(start), err)
	metrics.ShoutcastRequestDuration.WithLabelValues("addstream").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ShoutcastRequestsTotal.WithLabelValues("addstream", "error").Inc()
		return newError(KindExternalConfig, "failed to configure stream on server", err)
	}

	metrics.ShoutcastRequestsTotal.WithLabelValues("addstream", "success").Inc()
	return nil
}

func (c *Coordinator) adminClient(ctx context.Context) (StreamAdmin, error) {
	server, err := c.servers.GetPrimary(ctx)
	if err != nil {
		return nil, err
	}
	return c.clients(server), nil
}

func (c *Coordinator) releasePort(ctx context.Context, port int, userID string) {
	if err := c.pool.Release(ctx, port); err != nil {
		metrics.PortAllocationsTotal.WithLabelValues("release", "error").Inc()
		c.logger.LogPortAllocation("release", port, userID, err)
		return
	}
	metrics.PortAllocationsTotal.WithLabelValues("release", "success").Inc()
	c.logger.LogPortAllocation("release", port, userID, nil)
}

func (c *Coordinator) enqueueReconcile(ctx context.Context, streamID string, attempt int) {
	if c.queue == nil {
		return
	}
	if err := c.queue.PublishReconcile(ctx, streamID, attempt); err != nil {
		c.logger.WithStreamID(streamID).ErrorWithErr("Failed to publish reconcile task", err)
		return
	}
	metrics.ReconcileTasksPublished.Inc()
}

func (c *Coordinator) notify(ctx context.Context, event string, stream *models.DedicatedStream) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyStreamEvent(ctx, event, stream); err != nil {
		c.logger.WithStreamID(stream.ID).ErrorWithErr("Failed to notify webhook subscribers", err)
	}
}
