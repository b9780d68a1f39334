package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    StreamStatus
		to      StreamStatus
		allowed bool
	}{
		{"provisioning to active", StreamStatusProvisioning, StreamStatusActive, true},
		{"provisioning to error", StreamStatusProvisioning, StreamStatusError, true},
		{"provisioning to terminated", StreamStatusProvisioning, StreamStatusTerminated, true},
		{"provisioning to suspended", StreamStatusProvisioning, StreamStatusSuspended, false},
		{"active to suspended", StreamStatusActive, StreamStatusSuspended, true},
		{"active to terminated", StreamStatusActive, StreamStatusTerminated, true},
		{"active to error", StreamStatusActive, StreamStatusError, false},
		{"suspended to active", StreamStatusSuspended, StreamStatusActive, true},
		{"suspended to terminated", StreamStatusSuspended, StreamStatusTerminated, true},
		{"error to active", StreamStatusError, StreamStatusActive, true},
		{"error to error", StreamStatusError, StreamStatusError, true},
		{"error to terminated", StreamStatusError, StreamStatusTerminated, true},
		{"terminated to active", StreamStatusTerminated, StreamStatusActive, false},
		{"terminated to suspended", StreamStatusTerminated, StreamStatusSuspended, false},
		{"terminated to terminated", StreamStatusTerminated, StreamStatusTerminated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStreamStatusValid(t *testing.T) {
	for _, s := range []StreamStatus{
		StreamStatusProvisioning, StreamStatusActive, StreamStatusSuspended,
		StreamStatusError, StreamStatusTerminated,
	} {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}

	assert.False(t, StreamStatus("live").Valid())
	assert.False(t, StreamStatus("").Valid())
}

func TestStreamStatusIsTerminal(t *testing.T) {
	assert.True(t, StreamStatusTerminated.IsTerminal())
	assert.False(t, StreamStatusSuspended.IsTerminal())
	assert.False(t, StreamStatusError.IsTerminal())
}

func TestValidBitrate(t *testing.T) {
	for _, b := range []int{64, 96, 128, 192, 256, 320} {
		assert.True(t, ValidBitrate(b), "bitrate %d should be accepted", b)
	}

	assert.False(t, ValidBitrate(0))
	assert.False(t, ValidBitrate(112))
	assert.False(t, ValidBitrate(640))
}
