package retrieval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetGuardEpoch(t *testing.T) {
	g := NewResetGuard()
	epoch := g.Epoch()

	called := false
	require.NoError(t, g.ReadAt(epoch, func() error { called = true; return nil }))
	assert.True(t, called)

	require.NoError(t, g.Exclusive(func() error { return nil }))
	assert.Equal(t, epoch+1, g.Epoch())

	called = false
	err := g.ReadAt(epoch, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrIndexReset)
	assert.False(t, called)
}

func TestResetGuardExclusiveFailureStillAdvances(t *testing.T) {
	g := NewResetGuard()
	boom := errors.New("boom")

	err := g.Exclusive(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), g.Epoch())
}

func TestNilResetGuard(t *testing.T) {
	var g *ResetGuard
	assert.Zero(t, g.Epoch())
	assert.NoError(t, g.ReadAt(3, func() error { return nil }))
	assert.NoError(t, g.Exclusive(func() error { return nil }))
}
