// ABOUTME: Shared test fixtures for the event store
// ABOUTME: Each test gets a fresh SQLite database in a temp directory

package store

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "glidescope.db")
	s, err := New(dbPath, DefaultOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// withClock pins the store clock for the duration of a test.
func withClock(t *testing.T, millis int64) {
	t.Helper()
	orig := nowMillis
	nowMillis = func() int64 { return millis }
	t.Cleanup(func() { nowMillis = orig })
}

// withDraw pins the sampling draw for the duration of a test.
func withDraw(t *testing.T, v float64) {
	t.Helper()
	orig := sampleDraw
	sampleDraw = func() float64 { return v }
	t.Cleanup(func() { sampleDraw = orig })
}
