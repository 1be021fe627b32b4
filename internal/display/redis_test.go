//go:build integration

package display

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan Event, 4)
	subscribed := make(chan error, 1)
	go func() {
		subscribed <- Subscribe(ctx, rdb, "anchor-test", nil, func(ev Event) { received <- ev })
	}()

	pub, err := NewRedisPublisher(rdb, "anchor-test", nil)
	require.NoError(t, err)
	defer pub.Close()

	// the subscriber may not be attached yet, keep publishing until it is
	var got Event
	require.Eventually(t, func() bool {
		pub.Show(recognized("Sarah"))
		select {
		case got = <-received:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, EventTransition, got.Type)
	require.NotNil(t, got.Transition)
	assert.Equal(t, "Sarah", got.Transition.Profile.Name)

	cancel()
	assert.NoError(t, <-subscribed)
}
