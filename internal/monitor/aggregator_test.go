package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestopradio/streamcast/internal/config"
	"github.com/onestopradio/streamcast/internal/logging"
	"github.com/onestopradio/streamcast/internal/metrics"
	"github.com/onestopradio/streamcast/internal/shoutcast"
	"github.com/onestopradio/streamcast/pkg/models"
)

type fakeStreams struct {
	active  []*models.DedicatedStream
	updates map[string]bool // stream id -> last observed liveness
}

func (s *fakeStreams) ListByStatus(ctx context.Context, status models.StreamStatus) ([]*models.DedicatedStream, error) {
	return s.active, nil
}

func (s *fakeStreams) UpdateLiveState(ctx context.Context, id string, isLive bool, listeners int, at time.Time) error {
	if s.updates == nil {
		s.updates = make(map[string]bool)
	}
	s.updates[id] = isLive
	return nil
}

type fakeSessions struct {
	open    map[string]*models.StreamSession
	samples []*models.MonitoringSample
	touched []string
	closed  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{open: make(map[string]*models.StreamSession)}
}

func (s *fakeSessions) OpenSession(ctx context.Context, session *models.StreamSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	s.open[session.StreamID] = session
	return nil
}

func (s *fakeSessions) GetOpenSession(ctx context.Context, streamID string) (*models.StreamSession, error) {
	return s.open[streamID], nil
}

func (s *fakeSessions) TouchSession(ctx context.Context, sessionID string, listeners int, dataMB float64) error {
	s.touched = append(s.touched, sessionID)
	return nil
}

func (s *fakeSessions) CloseSession(ctx context.Context, sessionID string, endedAt time.Time, reason string, planned bool) error {
	s.closed = append(s.closed, sessionID)
	for streamID, open := range s.open {
		if open.ID == sessionID {
			delete(s.open, streamID)
		}
	}
	return nil
}

func (s *fakeSessions) InsertSample(ctx context.Context, sample *models.MonitoringSample) error {
	s.samples = append(s.samples, sample)
	return nil
}

type fakeServers struct {
	health []string
	err    error
}

func (s *fakeServers) GetPrimary(ctx context.Context) (*models.StreamingServer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.StreamingServer{ID: "srv-1", Hostname: "stream.example.com"}, nil
}

func (s *fakeServers) UpdateHealth(ctx context.Context, id, status string, at time.Time) error {
	s.health = append(s.health, status)
	return nil
}

type fakeClient struct {
	infoByPort map[string]*shoutcast.StreamInfo
	statusErr  error
}

func (c *fakeClient) GetServerStatus(ctx context.Context) (*shoutcast.ServerStatus, error) {
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	return &shoutcast.ServerStatus{}, nil
}

func (c *fakeClient) GetStreamInfo(ctx context.Context, streamID string) (*shoutcast.StreamInfo, error) {
	info, ok := c.infoByPort[streamID]
	if !ok {
		return nil, shoutcast.ErrStreamNotFound
	}
	return info, nil
}

type fakeLocker struct {
	held     bool
	acquires int
	releases int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	l.acquires++
	return !l.held, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, resource string) error {
	l.releases++
	return nil
}

type fakePool struct {
	status *models.PoolStatus
	err    error
}

func (p *fakePool) Status(ctx context.Context) (*models.PoolStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.status, nil
}

func newTestAggregator(t *testing.T, streams *fakeStreams, sessions *fakeSessions, servers *fakeServers, client *fakeClient, locker Locker) *Aggregator {
	t.Helper()

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	factory := func(server *models.StreamingServer) StatusClient { return client }

	return NewAggregator(streams, sessions, servers, nil, factory, locker, config.MonitoringConfig{
		PollInterval: time.Second,
		LockTTL:      time.Minute,
	}, logger)
}

func activeStream(id string, port int) *models.DedicatedStream {
	return &models.DedicatedStream{ID: id, UserID: "user-" + id, Port: port, Status: models.StreamStatusActive}
}

func TestPollOpensSessionOnLivenessTransition(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{infoByPort: map[string]*shoutcast.StreamInfo{
		"8100": {Port: 8100, IsLive: true, CurrentListeners: 25, Bitrate: 128, CurrentSong: "Artist - Track"},
	}}

	agg := newTestAggregator(t, streams, sessions, servers, client, nil)
	require.NoError(t, agg.Poll(context.Background()))

	require.Len(t, sessions.samples, 1)
	assert.True(t, sessions.samples[0].IsLive)
	assert.Equal(t, 25, sessions.samples[0].CurrentListeners)
	assert.Equal(t, "Artist - Track", sessions.samples[0].CurrentSong)
	assert.InDelta(t, 3.2, sessions.samples[0].BandwidthMbps, 0.001)

	require.NotNil(t, sessions.open["s1"])
	assert.Equal(t, 128, sessions.open["s1"].AverageBitrate)
	assert.True(t, streams.updates["s1"])
	assert.Equal(t, []string{"healthy"}, servers.health)
}

func TestPollTouchesExistingSession(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{infoByPort: map[string]*shoutcast.StreamInfo{
		"8100": {Port: 8100, IsLive: true, CurrentListeners: 10, Bitrate: 128},
	}}

	agg := newTestAggregator(t, streams, sessions, servers, client, nil)
	ctx := context.Background()

	require.NoError(t, agg.Poll(ctx))
	require.NoError(t, agg.Poll(ctx))

	require.NotNil(t, sessions.open["s1"])
	assert.Len(t, sessions.touched, 1)
	assert.Empty(t, sessions.closed)
	assert.Len(t, sessions.samples, 2)
}

func TestPollClosesSessionWhenSourceDisconnects(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{infoByPort: map[string]*shoutcast.StreamInfo{
		"8100": {Port: 8100, IsLive: true, CurrentListeners: 10, Bitrate: 128},
	}}

	agg := newTestAggregator(t, streams, sessions, servers, client, nil)
	ctx := context.Background()

	require.NoError(t, agg.Poll(ctx))
	sessionID := sessions.open["s1"].ID

	client.infoByPort["8100"] = &shoutcast.StreamInfo{Port: 8100, IsLive: false}
	require.NoError(t, agg.Poll(ctx))

	assert.Equal(t, []string{sessionID}, sessions.closed)
	assert.Nil(t, sessions.open["s1"])
	assert.False(t, streams.updates["s1"])
}

func TestPollTreatsMissingMountAsOffline(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{infoByPort: map[string]*shoutcast.StreamInfo{}}

	agg := newTestAggregator(t, streams, sessions, servers, client, nil)
	require.NoError(t, agg.Poll(context.Background()))

	require.Len(t, sessions.samples, 1)
	assert.False(t, sessions.samples[0].IsLive)
	assert.False(t, streams.updates["s1"])
	assert.Empty(t, sessions.open)
}

func TestPollSkipsWhenLockHeld(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{infoByPort: map[string]*shoutcast.StreamInfo{
		"8100": {Port: 8100, IsLive: true, Bitrate: 128},
	}}
	locker := &fakeLocker{held: true}

	agg := newTestAggregator(t, streams, sessions, servers, client, locker)
	require.NoError(t, agg.Poll(context.Background()))

	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 0, locker.releases)
	assert.Empty(t, sessions.samples)
}

func TestPollReleasesLockAfterRound(t *testing.T) {
	streams := &fakeStreams{}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{}
	locker := &fakeLocker{}

	agg := newTestAggregator(t, streams, sessions, servers, client, locker)
	require.NoError(t, agg.Poll(context.Background()))

	assert.Equal(t, 1, locker.acquires)
	assert.Equal(t, 1, locker.releases)
}

func TestPollUpdatesPoolGauges(t *testing.T) {
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{}
	pool := &fakePool{status: &models.PoolStatus{TotalPorts: 101, AllocatedPorts: 7, AvailablePorts: 94}}

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	factory := func(server *models.StreamingServer) StatusClient { return client }
	agg := NewAggregator(&fakeStreams{}, sessions, servers, pool, factory, nil, config.MonitoringConfig{
		PollInterval: time.Second,
	}, logger)

	require.NoError(t, agg.Poll(context.Background()))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.PortsAllocated))
	assert.Equal(t, 94.0, testutil.ToFloat64(metrics.PortsAvailable))

	pool.status = &models.PoolStatus{TotalPorts: 101, AllocatedPorts: 8, AvailablePorts: 93}
	require.NoError(t, agg.Poll(context.Background()))
	assert.Equal(t, 8.0, testutil.ToFloat64(metrics.PortsAllocated))
	assert.Equal(t, 93.0, testutil.ToFloat64(metrics.PortsAvailable))
}

func TestPollSurvivesPoolStatusError(t *testing.T) {
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{}
	pool := &fakePool{err: errors.New("pool unavailable")}

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	factory := func(server *models.StreamingServer) StatusClient { return client }
	agg := NewAggregator(&fakeStreams{}, sessions, servers, pool, factory, nil, config.MonitoringConfig{
		PollInterval: time.Second,
	}, logger)

	assert.NoError(t, agg.Poll(context.Background()))
}

func TestPollRecordsUnhealthyServer(t *testing.T) {
	streams := &fakeStreams{active: []*models.DedicatedStream{activeStream("s1", 8100)}}
	sessions := newFakeSessions()
	servers := &fakeServers{}
	client := &fakeClient{statusErr: errors.New("connection refused")}

	agg := newTestAggregator(t, streams, sessions, servers, client, nil)
	err := agg.Poll(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"unhealthy"}, servers.health)
	assert.Empty(t, sessions.samples)
}
