package database

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRows yields a fixed number of zero-valued rows and then reports
// the configured iteration error, the way a dropped connection does.
type stubRows struct {
	remaining int
	iterErr   error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.iterErr }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Scan(dest ...any) error                       { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.remaining == 0 {
		return false
	}
	r.remaining--
	return true
}

func TestCollectStreamsSurfacesIterationError(t *testing.T) {
	iterErr := errors.New("connection reset")

	streams, err := collectStreams(&stubRows{remaining: 2, iterErr: iterErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, iterErr)
	assert.Nil(t, streams, "a truncated read must not look like a complete result")
}

func TestCollectStreams(t *testing.T) {
	streams, err := collectStreams(&stubRows{remaining: 3})
	require.NoError(t, err)
	assert.Len(t, streams, 3)
}

func TestCollectSamplesSurfacesIterationError(t *testing.T) {
	iterErr := errors.New("connection reset")

	samples, err := collectSamples(&stubRows{remaining: 1, iterErr: iterErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, iterErr)
	assert.Nil(t, samples)
}

func TestCollectWebhooksSurfacesIterationError(t *testing.T) {
	iterErr := errors.New("connection reset")

	webhooks, err := collectWebhooks(&stubRows{iterErr: iterErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, iterErr)
	assert.Nil(t, webhooks)
}

func TestCollectDeliveriesSurfacesIterationError(t *testing.T) {
	iterErr := errors.New("connection reset")

	deliveries, err := collectDeliveries(&stubRows{remaining: 2, iterErr: iterErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, iterErr)
	assert.Nil(t, deliveries)
}
