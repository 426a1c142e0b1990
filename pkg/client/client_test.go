package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/config"
	"github.com/cuemby/omg/pkg/daemon"
	"github.com/cuemby/omg/pkg/rpc"
	"github.com/cuemby/omg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StatusRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		SocketPath:     filepath.Join(dir, "omg.sock"),
		PidfilePath:    filepath.Join(dir, "omg.sock.pid"),
		DataDir:        dir,
		StatusPath:     filepath.Join(dir, "status.fast"),
		StatusInterval: time.Hour,
		DrainDeadline:  time.Second,
		RateLimit:      1000,
	}
	be := backend.NewFixtureBackend("pacman", []types.Package{
		{Name: "bash", Version: "5.2", Installed: true, Explicit: true},
	})
	s := daemon.New(cfg, be)
	require.NoError(t, s.Start(context.Background()))
	go s.Run(context.Background())
	t.Cleanup(s.Shutdown)

	c, err := Dial(cfg.SocketPath)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	resp, err := c.Status()
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(1), resp.Status.Status.TotalCount)

	resp, err = c.Search("bash", 10)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, rpc.KindSearch, resp.Kind)
	require.Len(t, resp.Search.Packages, 1)
}
