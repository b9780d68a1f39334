package main

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onestopradio/streamcast/internal/middleware"
	"github.com/onestopradio/streamcast/internal/provisioner"
	"github.com/onestopradio/streamcast/internal/queue"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/pkg/models"
)

// statusForError maps a coordinator failure to an HTTP status
func statusForError(err error) int {
	switch provisioner.KindOf(err) {
	case provisioner.KindNoCapacity:
		return http.StatusServiceUnavailable
	case provisioner.KindNotFound:
		return http.StatusNotFound
	case provisioner.KindInvalidTransition:
		return http.StatusConflict
	case provisioner.KindInvalidArgument:
		return http.StatusBadRequest
	case provisioner.KindExternalConfig, provisioner.KindUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// Provision stream endpoint
func (api *API) provisionStream(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req struct {
		Title        string  `json:"title" binding:"required"`
		Description  string  `json:"description"`
		Genre        string  `json:"genre"`
		StationID    *string `json:"station_id"`
		MaxListeners int     `json:"max_listeners"`
		Bitrate      int     `json:"bitrate"`
		Public       *bool   `json:"public"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, created, err := api.coordinator.Provision(c.Request.Context(), provisioner.ProvisionRequest{
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		Genre:        req.Genre,
		StationID:    req.StationID,
		MaxListeners: req.MaxListeners,
		Bitrate:      req.Bitrate,
		Public:       req.Public,
	})
	if err != nil {
		api.abortWithError(c, err)
		return
	}

	api.cacheStream(c, stream)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, stream)
}

// Get own stream endpoint
func (api *API) getMyStream(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, stream)
}

// Update own stream endpoint
func (api *API) updateMyStream(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.updateStreamByID(c, stream.ID)
}

// Get own stream stats endpoint
func (api *API) getMyStreamStats(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.streamStatsByID(c, stream.ID)
}

// Suspend own stream endpoint
func (api *API) suspendMyStream(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.suspendStreamByID(c, stream.ID)
}

// Resume own stream endpoint
func (api *API) resumeMyStream(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.resumeStreamByID(c, stream.ID)
}

// Terminate own stream endpoint
func (api *API) terminateMyStream(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.terminateStreamByID(c, stream.ID)
}

// Retry configuration for own stream endpoint
func (api *API) retryMyStreamConfiguration(c *gin.Context) {
	stream, ok := api.myStream(c)
	if !ok {
		return
	}

	api.retryConfigurationByID(c, stream.ID)
}

// myStream resolves the calling user's stream, writing the error
// response itself on failure. The cache is consulted first; a miss on
// either the user index or the stream record falls through to the
// store and repopulates both entries.
func (api *API) myStream(c *gin.Context) (*models.DedicatedStream, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	ctx := c.Request.Context()

	if streamID, err := api.cache.GetUserStream(ctx, userID); err == nil && streamID != "" {
		if cached, err := api.cache.GetStream(ctx, streamID); err == nil && cached != nil {
			return cached, true
		}
	}

	stream, err := api.coordinator.GetUserStream(ctx, userID)
	if err != nil {
		api.abortWithError(c, err)
		return nil, false
	}

	api.cacheStream(c, stream)
	return stream, true
}

// List streams endpoint (admin)
func (api *API) listStreams(c *gin.Context) {
	status := models.StreamStatus(c.DefaultQuery("status", string(models.StreamStatusActive)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	streams, err := api.streams.ListByStatus(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"status":  status,
		"count":   len(streams),
	})
}

// Get stream endpoint (admin)
func (api *API) getStream(c *gin.Context) {
	stream, err := api.coordinator.GetStream(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stream)
}

// Get stream stats endpoint (admin)
func (api *API) getStreamStats(c *gin.Context) {
	api.streamStatsByID(c, c.Param("id"))
}

// Suspend stream endpoint (admin)
func (api *API) suspendStream(c *gin.Context) {
	api.suspendStreamByID(c, c.Param("id"))
}

// Resume stream endpoint (admin)
func (api *API) resumeStream(c *gin.Context) {
	api.resumeStreamByID(c, c.Param("id"))
}

// Terminate stream endpoint (admin)
func (api *API) terminateStream(c *gin.Context) {
	api.terminateStreamByID(c, c.Param("id"))
}

// Retry configuration endpoint (admin)
func (api *API) retryStreamConfiguration(c *gin.Context) {
	api.retryConfigurationByID(c, c.Param("id"))
}

func (api *API) updateStreamByID(c *gin.Context, streamID string) {
	var req struct {
		Title        *string `json:"title"`
		Description  *string `json:"description"`
		Genre        *string `json:"genre"`
		MaxListeners *int    `json:"max_listeners"`
		Bitrate      *int    `json:"bitrate"`
		Public       *bool   `json:"public"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := api.coordinator.Update(c.Request.Context(), streamID, provisioner.UpdateRequest{
		Title:        req.Title,
		Description:  req.Description,
		Genre:        req.Genre,
		MaxListeners: req.MaxListeners,
		Bitrate:      req.Bitrate,
		Public:       req.Public,
	})
	if err != nil {
		api.abortWithError(c, err)
		return
	}

	api.cacheStream(c, stream)
	c.JSON(http.StatusOK, stream)
}

func (api *API) streamStatsByID(c *gin.Context, streamID string) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = parsed
	}

	stats, err := api.coordinator.GetStreamStats(c.Request.Context(), streamID, days)
	if err != nil {
		api.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (api *API) suspendStreamByID(c *gin.Context, streamID string) {
	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional for suspend
	_ = c.ShouldBindJSON(&req)

	if err := api.coordinator.Suspend(c.Request.Context(), streamID, req.Reason); err != nil {
		api.abortWithError(c, err)
		return
	}

	api.dropStreamCache(c, streamID)
	c.JSON(http.StatusOK, gin.H{"message": "Stream suspended", "stream_id": streamID})
}

func (api *API) resumeStreamByID(c *gin.Context, streamID string) {
	if err := api.coordinator.Resume(c.Request.Context(), streamID); err != nil {
		api.abortWithError(c, err)
		return
	}

	api.dropStreamCache(c, streamID)
	c.JSON(http.StatusOK, gin.H{"message": "Stream resumed", "stream_id": streamID})
}

func (api *API) terminateStreamByID(c *gin.Context, streamID string) {
	ctx := c.Request.Context()

	if err := api.coordinator.Terminate(ctx, streamID); err != nil {
		api.abortWithError(c, err)
		return
	}

	api.dropStreamCache(c, streamID)
	// The user index would otherwise keep pointing at the dead stream
	// until its TTL expires.
	if stream, err := api.coordinator.GetStream(ctx, streamID); err == nil {
		if err := api.cache.DeleteUserStream(ctx, stream.UserID); err != nil {
			api.logger.ErrorWithErr("Failed to drop user stream index", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stream terminated", "stream_id": streamID})
}

func (api *API) retryConfigurationByID(c *gin.Context, streamID string) {
	if err := api.coordinator.RetryConfiguration(c.Request.Context(), streamID); err != nil {
		api.abortWithError(c, err)
		return
	}

	api.dropStreamCache(c, streamID)
	c.JSON(http.StatusOK, gin.H{"message": "Stream configuration applied", "stream_id": streamID})
}

// Pool status endpoint (admin). The count query is cheap but hit by
// dashboards on a tight loop, so it is served from cache.
func (api *API) getPoolStatus(c *gin.Context) {
	ctx := c.Request.Context()

	if cached, err := api.cache.GetPoolStatus(ctx); err == nil && cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	status, err := api.pool.Status(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.SetPoolStatus(ctx, status, api.cfg.Monitoring.StatusCacheTTL); err != nil {
		api.logger.ErrorWithErr("Failed to cache pool status", err)
	}

	c.JSON(http.StatusOK, status)
}

// Server status endpoint (admin)
func (api *API) getServerStatus(c *gin.Context) {
	ctx := c.Request.Context()

	server, err := api.servers.GetPrimary(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	var cached shoutcast.ServerStatus
	if hit, err := api.cache.GetServerStatus(ctx, server.ID, &cached); err == nil && hit {
		c.JSON(http.StatusOK, gin.H{"server": server, "status": cached})
		return
	}

	client := shoutcast.NewClient(server.Hostname, server.AdminPort,
		server.AdminPassword, api.cfg.Shoutcast.RequestTimeout)
	status, err := client.GetServerStatus(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := api.cache.SetServerStatus(ctx, server.ID, status, api.cfg.Monitoring.StatusCacheTTL); err != nil {
		api.logger.ErrorWithErr("Failed to cache server status", err)
	}

	c.JSON(http.StatusOK, gin.H{"server": server, "status": status})
}

// Queue depth endpoint (admin)
func (api *API) getQueueDepth(c *gin.Context) {
	depth, err := api.queue.GetQueueDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	dlqDepth, err := api.queue.GetDLQDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reconcile_depth": depth,
		"dlq_depth":       dlqDepth,
	})
}

// Requeue dead-lettered tasks endpoint (admin). The dead letter queue
// holds reconcile tasks that ran out of retries; once the underlying
// fault is resolved an operator drains it back onto the reconcile
// queue, where each task starts over at attempt one.
func (api *API) requeueDLQ(c *gin.Context) {
	depth, err := api.queue.GetDLQDepth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if depth == 0 {
		c.JSON(http.StatusOK, gin.H{"requeued": 0, "dlq_depth": 0})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	var (
		mu       sync.Mutex
		requeued int
	)
	done := make(chan struct{})

	handler := func(task *queue.ReconcileTask, reason string) error {
		if err := api.queue.RetryFromDLQ(ctx, task); err != nil {
			return err
		}
		api.logger.WithStreamID(task.StreamID).Infof("Requeued dead-lettered task (was: %s)", reason)

		mu.Lock()
		defer mu.Unlock()
		requeued++
		if requeued == depth {
			close(done)
		}
		return nil
	}

	if err := api.queue.ConsumeDLQ(ctx, handler); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Drain until the snapshot depth is reached. Messages parked after
	// the snapshot stay for the next drain.
	select {
	case <-done:
	case <-ctx.Done():
	}
	cancel()

	mu.Lock()
	count := requeued
	mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"requeued": count, "dlq_depth": depth})
}

// cacheStream refreshes the per-stream and per-user cache entries that
// myStream reads.
func (api *API) cacheStream(c *gin.Context, stream *models.DedicatedStream) {
	ctx := c.Request.Context()
	if err := api.cache.SetStream(ctx, stream, api.cfg.Monitoring.StatusCacheTTL); err != nil {
		api.logger.ErrorWithErr("Failed to cache stream", err)
	}
	if err := api.cache.SetUserStream(ctx, stream.UserID, stream.ID, api.cfg.Monitoring.StatusCacheTTL); err != nil {
		api.logger.ErrorWithErr("Failed to cache user stream index", err)
	}
}

// dropStreamCache invalidates the stream record after a lifecycle
// transition; the next myStream read falls through to the store.
func (api *API) dropStreamCache(c *gin.Context, streamID string) {
	if err := api.cache.DeleteStream(c.Request.Context(), streamID); err != nil {
		api.logger.ErrorWithErr("Failed to drop stream cache entry", err)
	}
}
