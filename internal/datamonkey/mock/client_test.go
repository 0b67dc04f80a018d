package mock_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey/mock"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockClient_CompletesWithResults(t *testing.T) {
	c := mock.NewMockClient(json.RawMessage(`{"ok":true}`))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "a.fasta")
	require.NoError(t, os.WriteFile(path, []byte("ACGT"), 0o644))

	ds, err := c.Upload(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "handle-a.fasta", ds.Handle)
	assert.Equal(t, int64(4), ds.FileSize)

	id, err := c.StartJob(ctx, hyphy.FEL, map[string]any{"alignment": ds.Handle})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", id)

	st, err := c.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, datamonkey.StatusCompleted, st.Status)

	raw, err := c.JobResults(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	assert.Equal(t, []string{"Upload", "StartJob", "JobStatus", "JobResults"}, c.Calls())
	require.Len(t, c.Payloads(), 1)
}

func TestNewMockClient_MissingFile(t *testing.T) {
	c := mock.NewMockClient(nil)
	_, err := c.Upload(context.Background(), "/no/such/file")
	assert.ErrorIs(t, err, datamonkey.ErrFileNotFound)
}

func TestNewFailingClient(t *testing.T) {
	boom := errors.New("boom")
	c := mock.NewFailingClient(boom)
	ctx := context.Background()

	_, err := c.Health(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = c.StartJob(ctx, hyphy.MEME, nil)
	assert.ErrorIs(t, err, boom)
	_, err = c.JobStatus(ctx, "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewPendingClient(t *testing.T) {
	st, err := mock.NewPendingClient().JobStatus(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, datamonkey.StatusRunning, st.Status)
}
