// ABOUTME: Tests for the file-backed key-value store and instance cache
// ABOUTME: Covers persistence across reopen, atomic replace, and staleness

package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set("greeting", map[string]any{"text": "hello"}))

	var got map[string]any
	require.NoError(t, s.Get("greeting", &got))
	assert.Equal(t, "hello", got["text"])
}

func TestGetMissingKey(t *testing.T) {
	s, _ := newTestStore(t)
	var v string
	assert.ErrorIs(t, s.Get("absent", &v), ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Set(KeySettingsEnabled, true))

	reopened, err := Open(path)
	require.NoError(t, err)

	var enabled bool
	require.NoError(t, reopened.Get(KeySettingsEnabled, &enabled))
	assert.True(t, enabled)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Set("k", 1))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("k", 1))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))

	var v int
	assert.ErrorIs(t, s.Get("k", &v), ErrNotFound)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestInstanceInfoRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	info := &InstanceInfo{Hostname: "dev12345.service-now.com", Name: "dev12345", Version: "Xanadu"}
	require.NoError(t, s.PutInstanceInfo(info))
	assert.NotZero(t, info.DetectedAt)

	got, err := s.GetInstanceInfo("dev12345.service-now.com")
	require.NoError(t, err)
	assert.Equal(t, "Xanadu", got.Version)
}

func TestInstanceInfoStaleTreatedAsAbsent(t *testing.T) {
	s, _ := newTestStore(t)

	info := &InstanceInfo{
		Hostname:   "old.service-now.com",
		DetectedAt: time.Now().Add(-48 * time.Hour).UnixMilli(),
	}
	require.NoError(t, s.PutInstanceInfo(info))

	_, err := s.GetInstanceInfo("old.service-now.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInstanceInfoRequiresHostname(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.PutInstanceInfo(&InstanceInfo{}))
}

func TestConcurrentSetsAllReachDisk(t *testing.T) {
	s, path := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(fmt.Sprintf("key%d", i), i))
		}(i)
	}
	wg.Wait()

	// Reopen from the file: every write must have survived the last rename
	reopened, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		var v int
		require.NoError(t, reopened.Get(fmt.Sprintf("key%d", i), &v))
		assert.Equal(t, i, v)
	}
}
