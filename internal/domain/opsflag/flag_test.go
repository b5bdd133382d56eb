package opsflag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationFlag(t *testing.T) {
	flag, err := NewOperationFlag("legacy_migration")
	require.NoError(t, err)
	assert.Equal(t, "legacy_migration", flag.Name())
	assert.Equal(t, StateInProgress, flag.State())
	assert.False(t, flag.IsCompleted())
	assert.Nil(t, flag.CompletedAt())

	_, err = NewOperationFlag("")
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	flag, err := NewOperationFlag("mass_reset")
	require.NoError(t, err)

	require.NoError(t, flag.Complete(42))
	assert.True(t, flag.IsCompleted())
	assert.Equal(t, 42, flag.AffectedCount())
	require.NotNil(t, flag.CompletedAt())

	// Completion is terminal
	assert.ErrorIs(t, flag.Complete(7), ErrAlreadyCompleted)
	assert.Equal(t, 42, flag.AffectedCount())
}

func TestReconstructOperationFlag(t *testing.T) {
	now := time.Now().UTC()

	flag, err := ReconstructOperationFlag("legacy_migration", StateCompleted, &now, 10, now, now)
	require.NoError(t, err)
	assert.True(t, flag.IsCompleted())
	assert.Equal(t, 10, flag.AffectedCount())

	_, err = ReconstructOperationFlag("x", FlagState("bogus"), nil, 0, now, now)
	assert.Error(t, err)

	_, err = ReconstructOperationFlag("", StateInProgress, nil, 0, now, now)
	assert.Error(t, err)
}
