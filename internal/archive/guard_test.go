package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_ApprovesSmallFraction(t *testing.T) {
	guard := NewGuard(0.5, nil)

	assert.True(t, guard.Approve(1, 50))
	assert.True(t, guard.Approve(45, 100))
}

func TestGuard_VetoesMassRemoval(t *testing.T) {
	guard := NewGuard(0.5, nil)

	assert.False(t, guard.Approve(60, 100))
	assert.False(t, guard.Approve(100, 100))
}

func TestGuard_ExactThresholdStillApproved(t *testing.T) {
	guard := NewGuard(0.5, nil)

	// The veto fires strictly above the threshold.
	assert.True(t, guard.Approve(50, 100))
}

func TestGuard_DegenerateInputs(t *testing.T) {
	guard := NewGuard(0.5, nil)

	assert.False(t, guard.Approve(0, 100), "nothing missing means nothing to archive")
	assert.False(t, guard.Approve(5, 0), "an empty store can never approve archival")
}
