package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowPermitsBurstThenBlocks(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < PerMinute; i++ {
		require.True(t, l.Allow("sess1"))
	}
	require.False(t, l.Allow("sess1"))
}

func TestAllowTracksSessionsIndependently(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < PerMinute; i++ {
		require.True(t, l.Allow("sess1"))
	}
	require.True(t, l.Allow("sess2"))
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	l := New(time.Millisecond)
	l.Allow("sess1")
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < cleanupSampleRate; i++ {
		l.Allow("sess2")
	}
	l.mu.Lock()
	_, stillPresent := l.limiters["sess1"]
	l.mu.Unlock()
	require.False(t, stillPresent)
}
