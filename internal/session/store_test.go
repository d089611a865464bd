// ABOUTME: Tests for the session store covering uniqueness, append ordering,
// ABOUTME: wrap validation, snapshot reload, and concurrent ingestion safety.

package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path, slog.Default())
	require.NoError(t, err)
	return s
}

func TestOpen_MissingSnapshotStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, 0, s.Len())
}

func TestOpen_CorruptSnapshotFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path, slog.Default())
	assert.Error(t, err)
}

func TestCreate_FreshRecord(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Create("my phone", "12345")
	require.NoError(t, err)

	assert.Len(t, rec.Token, 32)
	assert.Equal(t, "my phone", rec.Label)
	assert.Equal(t, "12345", rec.ChatID)
	assert.False(t, rec.Wrap)
	assert.Empty(t, rec.TargetURL)
	assert.Empty(t, rec.Visits)
	assert.Empty(t, rec.Files)
	assert.WithinDuration(t, time.Now().UTC(), rec.CreatedAt, time.Minute)

	got, err := s.Get(rec.Token)
	require.NoError(t, err)
	assert.Empty(t, got.Visits)
	assert.Empty(t, got.Files)
}

func TestCreate_TokensUnique(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec, err := s.Create("", "")
		require.NoError(t, err)
		assert.False(t, seen[rec.Token])
		seen[rec.Token] = true
	}
}

func TestCreateWrapped_ValidURL(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.CreateWrapped("https://example.com", "wrapped", "")
	require.NoError(t, err)
	assert.True(t, rec.Wrap)
	assert.Equal(t, "https://example.com", rec.TargetURL)
}

func TestCreateWrapped_InvalidURL(t *testing.T) {
	s := newTestStore(t)

	cases := []string{
		"not a url",
		"ftp://example.com",
		"example.com",
		"http://",
		"",
	}
	for _, target := range cases {
		_, err := s.CreateWrapped(target, "", "")
		assert.ErrorIs(t, err, ErrInvalidTargetURL, "target %q", target)
	}

	// Nothing was stored.
	assert.Equal(t, 0, s.Len())
}

func TestGet_UnknownToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendVisit(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create("", "")
	require.NoError(t, err)

	battery := 0.5
	visit := Visit{
		Timestamp: time.Now().UTC(),
		IP:        "198.51.100.7",
		Battery:   &battery,
		Coords:    &Coords{Lat: 1, Lon: 2},
	}

	updated, err := s.AppendVisit(rec.Token, visit)
	require.NoError(t, err)
	require.Len(t, updated.Visits, 1)
	assert.Equal(t, visit, updated.Visits[0])
}

func TestAppendVisit_UnknownToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendVisit("deadbeefdeadbeefdeadbeefdeadbeef", Visit{IP: "203.0.113.1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestAppendFile_UnknownToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendFile("deadbeefdeadbeefdeadbeefdeadbeef", FileRef{Name: "x.jpg"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendVisit_Concurrent(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create("", "")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendVisit(rec.Token, Visit{
				Timestamp: time.Now().UTC(),
				IP:        fmt.Sprintf("10.0.0.%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(rec.Token)
	require.NoError(t, err)
	require.Len(t, got.Visits, n)

	// Every writer landed exactly once.
	ips := make(map[string]bool)
	for _, v := range got.Visits {
		ips[v.IP] = true
	}
	assert.Len(t, ips, n)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create("", "")
	require.NoError(t, err)

	before, err := s.Get(rec.Token)
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	before.Visits = append(before.Visits, Visit{IP: "203.0.113.9"})
	before.Label = "tampered"

	after, err := s.Get(rec.Token)
	require.NoError(t, err)
	assert.Empty(t, after.Visits)
	assert.Empty(t, after.Label)
}

func TestGet_VisitPointersNotAliased(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Create("", "")
	require.NoError(t, err)

	battery := 0.5
	_, err = s.AppendVisit(rec.Token, Visit{
		IP:      "198.51.100.7",
		Battery: &battery,
		Coords:  &Coords{Lat: 1, Lon: 2},
	})
	require.NoError(t, err)

	got, err := s.Get(rec.Token)
	require.NoError(t, err)
	require.Len(t, got.Visits, 1)

	// Writing through the returned pointers must not reach stored state.
	*got.Visits[0].Battery = 0.99
	got.Visits[0].Coords.Lat = -90

	after, err := s.Get(rec.Token)
	require.NoError(t, err)
	require.NotNil(t, after.Visits[0].Battery)
	assert.InDelta(t, 0.5, *after.Visits[0].Battery, 1e-9)
	assert.Equal(t, Coords{Lat: 1, Lon: 2}, *after.Visits[0].Coords)
}

func TestSnapshot_ReloadIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path, slog.Default())
	require.NoError(t, err)

	rec1, err := s.Create("phone", "111")
	require.NoError(t, err)
	rec2, err := s.CreateWrapped("https://example.com", "wrapped", "222")
	require.NoError(t, err)

	battery := 0.9
	_, err = s.AppendVisit(rec1.Token, Visit{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		IP:        "198.51.100.7",
		Battery:   &battery,
		Coords:    &Coords{Lat: 52.52, Lon: 13.405},
	})
	require.NoError(t, err)
	_, err = s.AppendFile(rec2.Token, FileRef{
		Name:       rec2.Token + "_20260101T000000000000.jpg",
		CapturedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)

	before := s.Snapshot()

	// Simulate a restart.
	reloaded, err := Open(path, slog.Default())
	require.NoError(t, err)

	after := reloaded.Snapshot()
	require.Len(t, after, len(before))
	for tok, want := range before {
		got, ok := after[tok]
		require.True(t, ok, "session %s missing after reload", tok)
		wantJSON, err := json.Marshal(want)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, string(wantJSON), string(gotJSON))
	}
}

func TestPersist_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sessions.json"), slog.Default())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := s.Create("", "")
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sessions.json", entries[0].Name())
}

func TestHealth_PersistFailureDoesNotFailMutation(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sessions.json"), slog.Default())
	require.NoError(t, err)

	rec, err := s.Create("", "")
	require.NoError(t, err)

	failures, lastErr := s.Health()
	assert.Zero(t, failures)
	assert.NoError(t, lastErr)

	// Point the snapshot at an unwritable location: mutations must still
	// succeed in memory while health reports the failure.
	s.path = filepath.Join(dir, "missing", "sessions.json")

	updated, err := s.AppendVisit(rec.Token, Visit{IP: "203.0.113.1"})
	require.NoError(t, err)
	assert.Len(t, updated.Visits, 1)

	failures, lastErr = s.Health()
	assert.Equal(t, int64(1), failures)
	assert.Error(t, lastErr)
}

func TestClose_FlushesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path, slog.Default())
	require.NoError(t, err)

	_, err = s.Create("", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
