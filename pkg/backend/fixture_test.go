package backend

import (
	"context"
	"testing"

	"github.com/cuemby/omg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureBackend_InfoAndSnapshot(t *testing.T) {
	b := NewFixtureBackend("pacman", []types.Package{
		{Name: "bash", Version: "5.2", Installed: true, Explicit: true},
		{Name: "firefox", Version: "128.0", Installed: true},
	})

	pkg, ok, err := b.Info(context.Background(), "bash")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, pkg.Installed)

	_, ok, err = b.Info(context.Background(), "nope-zzz-xyz")
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Packages, 2)
	assert.NotEmpty(t, snap.Fingerprint)
}

func TestFixtureBackend_InfoRejectsBadName(t *testing.T) {
	b := NewFixtureBackend("pacman", nil)
	_, _, err := b.Info(context.Background(), "foo;rm -rf /")
	assert.Error(t, err)
}

func TestFixtureBackend_InstallMarksExplicit(t *testing.T) {
	b := NewFixtureBackend("pacman", nil)
	_, err := b.Install(context.Background(), []string{"htop"}, MutateOptions{})
	require.NoError(t, err)

	pkg, ok, err := b.Info(context.Background(), "htop")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pkg.Installed)
	assert.True(t, pkg.Explicit)
}

func TestFixtureBackend_ApplyAllUpdates(t *testing.T) {
	b := NewFixtureBackend("pacman", []types.Package{
		{Name: "vim", Version: "9.0", Installed: true},
	})
	b.SetUpdates([]types.UpdateCandidate{
		{Name: "vim", CurrentVersion: "9.0", NewVersion: "9.1"},
	})

	_, err := b.ApplyAllUpdates(context.Background(), MutateOptions{})
	require.NoError(t, err)

	pkg, _, err := b.Info(context.Background(), "vim")
	require.NoError(t, err)
	assert.Equal(t, "9.1", pkg.Version)

	updates, err := b.Updates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updates)
}
