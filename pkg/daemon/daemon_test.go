package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/config"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/rpc"
	"github.com/cuemby/omg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		SocketPath:     filepath.Join(dir, "omg.sock"),
		PidfilePath:    filepath.Join(dir, "omg.sock.pid"),
		DataDir:        dir,
		StatusPath:     filepath.Join(dir, "status.fast"),
		LogLevel:       "error",
		StatusInterval: time.Hour,
		DrainDeadline:  2 * time.Second,
		RateLimit:      1000,
	}
}

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig(t)
	be := backend.NewFixtureBackend("pacman", []types.Package{
		{Name: "bash", Version: "5.2", Installed: true, Explicit: true},
	})
	s := New(cfg, be)
	require.NoError(t, s.Start(context.Background()))
	go s.Run(context.Background())
	t.Cleanup(s.Shutdown)
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	c, err := net.Dial("unix", s.cfg.SocketPath)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func roundTrip(t *testing.T, c net.Conn, req rpc.Request) rpc.Response {
	t.Helper()
	payload, err := rpc.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, rpc.WriteFrame(c, payload))

	respPayload, err := rpc.ReadFrame(c)
	require.NoError(t, err)
	resp, err := rpc.DecodeResponse(respPayload)
	require.NoError(t, err)
	return *resp
}

func TestServer_StartRunServeStatus(t *testing.T) {
	s := startTestServer(t)
	c := dial(t, s)

	resp := roundTrip(t, c, rpc.Request{ID: 1, Kind: rpc.KindStatus})
	require.Nil(t, resp.Error)
	assert.Equal(t, uint64(1), resp.Status.Status.TotalCount)
}

func TestServer_MultipleRequestsOnOneConnection(t *testing.T) {
	s := startTestServer(t)
	c := dial(t, s)

	for i := uint64(1); i <= 5; i++ {
		resp := roundTrip(t, c, rpc.Request{ID: i, Kind: rpc.KindInfo, Info: &rpc.InfoRequest{Name: "bash"}})
		require.Nil(t, resp.Error)
		assert.Equal(t, i, resp.ID)
	}
}

func TestServer_SecondInstanceRefusesToStart(t *testing.T) {
	cfg := testConfig(t)
	be := backend.NewFixtureBackend("pacman", nil)

	first := New(cfg, be)
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(first.Shutdown)

	second := New(cfg, be)
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestServer_StartSurfacesStorageUnavailable(t *testing.T) {
	cfg := testConfig(t)
	// A directory sitting where the omg.db file belongs makes bolt.Open
	// fail, which pkv.Open wraps as
	// ErrStorageUnavailable and Server.Start must propagate unchanged
	// so cmd/omgd can exit 4.
	blocker := filepath.Join(cfg.DataDir, "omg.db")
	require.NoError(t, os.MkdirAll(blocker, 0700))

	be := backend.NewFixtureBackend("pacman", nil)
	s := New(cfg, be)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pkv.ErrStorageUnavailable)
}

func TestServer_ShutdownRequiresOwnerOverSocket(t *testing.T) {
	s := startTestServer(t)
	c := dial(t, s)

	// In-process dial shares the test process's uid, so this connection
	// is always the owner; this only exercises the happy path end to end.
	resp := roundTrip(t, c, rpc.Request{ID: 1, Kind: rpc.KindShutdown})
	require.Nil(t, resp.Error)

	select {
	case <-s.Stopped():
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after Shutdown request")
	}
}
