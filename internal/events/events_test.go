package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kiranshivaraju/hyphy-mcp/internal/config"
	"github.com/kiranshivaraju/hyphy-mcp/internal/events"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupNATS spins up a NATS container and returns its client URL.
func setupNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return "nats://" + host + ":" + port.Port()
}

func TestNew_WithoutURLIsNop(t *testing.T) {
	p, err := events.New(config.NATSConfig{Subject: "hyphy.jobs"})
	require.NoError(t, err)
	assert.IsType(t, events.Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), models.JobEvent{JobID: "x"}))
	p.Close()
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := events.Connect("nats://127.0.0.1:1", "hyphy.jobs")
	assert.Error(t, err)
}

func TestNATSPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupNATS(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("hyphy.jobs", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	p, err := events.New(config.NATSConfig{URL: url, Subject: "hyphy.jobs"})
	require.NoError(t, err)
	defer p.Close()

	remote := "r1"
	job := &models.Job{Method: "FEL", Status: models.JobStatusRunning, RemoteJobID: &remote}
	require.NoError(t, p.Publish(context.Background(), models.NewJobEvent(job, 1700000000000)))

	select {
	case msg := <-msgs:
		var ev models.JobEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "FEL", ev.Method)
		assert.Equal(t, models.JobStatusRunning, ev.Status)
		assert.Equal(t, "r1", ev.RemoteJobID)
		assert.Equal(t, int64(1700000000000), ev.HappenedAt)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
