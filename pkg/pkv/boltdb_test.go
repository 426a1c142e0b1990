package pkv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStore_PutGet(t *testing.T) {
	store := openTestStore(t)

	err := store.Put(NamespaceInfoCache, "firefox", []byte("payload"), int64(time.Minute))
	require.NoError(t, err)

	value, err := store.Get(NamespaceInfoCache, "firefox")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), value)
}

func TestBoltStore_GetExpiredEntryIsAbsent(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(NamespaceInfoCache, "stale", []byte("old"), int64(time.Millisecond)))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(NamespaceInfoCache, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_ZeroTTLNeverExpires(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(NamespaceStatusSnapshot, "current", []byte("forever"), 0))

	value, err := store.Get(NamespaceStatusSnapshot, "current")
	require.NoError(t, err)
	assert.Equal(t, []byte("forever"), value)
}

func TestBoltStore_RangeSkipsExpiredEntries(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(NamespaceSearchCache, "live", []byte("1"), int64(time.Minute)))
	require.NoError(t, store.Put(NamespaceSearchCache, "lapsed", []byte("2"), int64(time.Millisecond)))
	time.Sleep(5 * time.Millisecond)

	results, err := store.Range(NamespaceSearchCache, "l", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Contains(t, results, "live")
}

func TestBoltStore_GetMissingKey(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(NamespaceInfoCache, "nope-zzz-xyz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_Delete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(NamespaceSearchCache, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(NamespaceSearchCache, "k"))

	_, err := store.Get(NamespaceSearchCache, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_RangePrefix(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(NamespaceCompletionCache, "fire", []byte("1"), 0))
	require.NoError(t, store.Put(NamespaceCompletionCache, "firefox", []byte("2"), 0))
	require.NoError(t, store.Put(NamespaceCompletionCache, "vim", []byte("3"), 0))

	results, err := store.Range(NamespaceCompletionCache, "fire", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results, "fire")
	assert.Contains(t, results, "firefox")
}

func TestBoltStore_RangeLimit(t *testing.T) {
	store := openTestStore(t)

	for _, name := range []string{"a1", "a2", "a3", "a4"} {
		require.NoError(t, store.Put(NamespaceCompletionCache, name, []byte("x"), 0))
	}

	results, err := store.Range(NamespaceCompletionCache, "a", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestOpen_UnknownNamespaceRejected(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(Namespace("bogus"), "k")
	assert.Error(t, err)
}
