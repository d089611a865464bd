// ABOUTME: Concurrency-safe session store with durable JSON snapshot persistence
// ABOUTME: Every mutation rewrites the full snapshot atomically before returning

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lanternlink/lantern/internal/token"
)

// createRetries bounds token regeneration on collision.
const createRetries = 3

// Store owns the token -> Record map and its snapshot file. All mutating
// operations hold the write lock across both the in-memory update and the
// snapshot write, so no event is acknowledged before it is on disk and
// readers never observe a half-applied mutation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Record

	path   string
	logger *slog.Logger

	// Persistence health. A failed snapshot write does not roll back the
	// in-memory mutation and does not fail the caller; it is recorded here
	// and surfaced through Health().
	persistFailures int64
	lastPersistErr  error
}

// Open loads the store from the snapshot at path. A missing snapshot yields
// an empty store; a corrupt one is an error so bad state is never silently
// discarded.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		sessions: make(map[string]*Record),
		path:     path,
		logger:   logger.With("component", "session-store"),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no snapshot found, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &s.sessions); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	s.logger.Info("loaded snapshot", "path", path, "sessions", len(s.sessions))
	return s, nil
}

// Create mints a token and stores a new session record.
func (s *Store) Create(label, chatID string) (*Record, error) {
	return s.create(label, chatID, "")
}

// CreateWrapped stores a new wrap session embedding targetURL. The target
// must be an absolute http or https URL; nothing is stored otherwise.
func (s *Store) CreateWrapped(targetURL, label, chatID string) (*Record, error) {
	if !validTargetURL(targetURL) {
		return nil, ErrInvalidTargetURL
	}
	return s.create(label, chatID, targetURL)
}

func (s *Store) create(label, chatID, targetURL string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.freshTokenLocked()
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Token:     tok,
		Label:     label,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
		Wrap:      targetURL != "",
		TargetURL: targetURL,
		Visits:    []Visit{},
		Files:     []FileRef{},
	}
	s.sessions[tok] = rec
	s.persistLocked()
	return rec.clone(), nil
}

// freshTokenLocked generates a token that is not already in use. Collisions
// are practically impossible; the retry bound guards against a broken
// entropy source looping forever.
func (s *Store) freshTokenLocked() (string, error) {
	for i := 0; i < createRetries; i++ {
		tok, err := token.Generate()
		if err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}
		if _, exists := s.sessions[tok]; !exists {
			return tok, nil
		}
		s.logger.Warn("token collision, regenerating", "attempt", i+1)
	}
	return "", ErrTokenCollision
}

// Get returns a copy of the record for tok, or ErrNotFound.
func (s *Store) Get(tok string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[tok]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

// AppendVisit appends one telemetry event to the session, in arrival order.
// Returns the updated record, or ErrNotFound if the token is unknown.
func (s *Store) AppendVisit(tok string, v Visit) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[tok]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Visits = append(rec.Visits, v)
	s.persistLocked()
	return rec.clone(), nil
}

// AppendFile appends one stored-file reference to the session.
// Returns the updated record, or ErrNotFound if the token is unknown.
func (s *Store) AppendFile(tok string, f FileRef) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[tok]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Files = append(rec.Files, f)
	s.persistLocked()
	return rec.clone(), nil
}

// Snapshot returns a deep copy of the full store contents. It exists for
// persistence and diagnostics, not as a public read API.
func (s *Store) Snapshot() map[string]*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Record, len(s.sessions))
	for tok, rec := range s.sessions {
		out[tok] = rec.clone()
	}
	return out
}

// Len returns the number of sessions in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Health reports snapshot-write health: the number of failed persists since
// startup and the error from the most recent failure. lastErr is nil when
// the most recent persist succeeded.
func (s *Store) Health() (failures int64, lastErr error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistFailures, s.lastPersistErr
}

// Close flushes a final snapshot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeSnapshotLocked(); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	return nil
}

// persistLocked rewrites the snapshot file. Must be called with mu held for
// writing. Failures are logged and recorded but deliberately do not fail the
// mutation: the in-memory state stays authoritative and the condition is
// reported through Health instead.
func (s *Store) persistLocked() {
	if err := s.writeSnapshotLocked(); err != nil {
		s.persistFailures++
		s.lastPersistErr = err
		s.logger.Error("snapshot write failed", "path", s.path, "error", err)
		return
	}
	s.lastPersistErr = nil
}

// writeSnapshotLocked writes the full map to a temp file and renames it into
// place, so a crash mid-write never leaves a truncated snapshot.
func (s *Store) writeSnapshotLocked() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sessions-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// validTargetURL reports whether raw is an absolute http or https URL with a
// host component.
func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
