package scanner

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronScheduler(t *testing.T) {
	var calls atomic.Int32
	s := NewCronScheduler()

	require.NoError(t, s.Start(20*time.Millisecond, func() { calls.Add(1) }))
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	time.Sleep(50 * time.Millisecond)
	after := calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no calls after Stop")
}

func TestCronScheduler_OverlappingRunsReachCallback(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := NewCronScheduler()

	require.NoError(t, s.Start(20*time.Millisecond, func() {
		if calls.Add(1) == 1 {
			<-release
		}
	}))
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond,
		"runs due while the first is blocked still fire")

	s.Stop()
	close(release)
}
