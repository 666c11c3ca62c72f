package pty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartTracksSession(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Cleanup()

	s, err := m.Start(Options{Title: "shell", Command: "/bin/sh"})
	require.NoError(t, err)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, 1, m.Count())
}

func TestManager_EvictsOldestWhenAtCapacity(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Cleanup()

	var first *Session
	for i := 0; i < MaxSessions; i++ {
		s, err := m.Start(Options{Command: "/bin/sh"})
		require.NoError(t, err)
		if i == 0 {
			first = s
		}
	}
	require.Equal(t, MaxSessions, m.Count())

	_, err := m.Start(Options{Command: "/bin/sh"})
	require.NoError(t, err)

	assert.Equal(t, MaxSessions, m.Count(), "manager must stay at the cap, not grow past it")
	_, stillTracked := m.Get(first.ID)
	assert.False(t, stillTracked, "the oldest session must be evicted to make room")
}

func TestManager_CleanupKillsAllSessions(t *testing.T) {
	m := NewManager(nil, nil)

	s1, err := m.Start(Options{Command: "/bin/sh"})
	require.NoError(t, err)
	s2, err := m.Start(Options{Command: "/bin/sh"})
	require.NoError(t, err)

	m.Cleanup()

	assert.Equal(t, 0, m.Count())
	time.Sleep(100 * time.Millisecond)
	assert.NotEqual(t, StatusRunning, s1.Status())
	assert.NotEqual(t, StatusRunning, s2.Status())
}
