// ABOUTME: Image payload decoding, size bounds, and blob persistence
// ABOUTME: Accepts raw base64 or data-URL payloads, writes blobs to the upload dir

package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lanternlink/lantern/internal/session"
)

// MaxImageBytes is the decoded-size limit for uploaded images.
const MaxImageBytes = 5_000_000

// ErrBadPayload is returned when the payload is empty or not decodable base64.
var ErrBadPayload = errors.New("bad image payload")

// ErrPayloadTooLarge is returned when the decoded image exceeds MaxImageBytes.
var ErrPayloadTooLarge = errors.New("image payload too large")

// maxEncodedLen bounds the accepted encoded payload so a hostile payload is
// rejected before any decode work: base64 expands 3 bytes to 4 characters,
// plus padding slack.
var maxEncodedLen = base64.StdEncoding.EncodedLen(MaxImageBytes) + 4

// Decode turns a client image payload into raw bytes. Payloads may be plain
// base64 or a data URL ("data:image/jpeg;base64,..."): when the payload
// starts with a data: scheme, everything up to and including the first comma
// is stripped.
func Decode(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		_, b64, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data url without payload", ErrBadPayload)
		}
		raw = b64
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadPayload)
	}
	if len(raw) > maxEncodedLen {
		return nil, ErrPayloadTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Some clients strip padding; accept that too.
		data, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}
	if len(data) > MaxImageBytes {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

// Store persists image blobs into a flat content directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the upload directory if needed and returns a blob store.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.With("component", "media-store")}, nil
}

// Save writes the image bytes under a name derived from the token and the
// capture timestamp. Microsecond precision guarantees per-session uniqueness
// and makes names sort chronologically.
func (s *Store) Save(token string, data []byte, capturedAt time.Time) (session.FileRef, error) {
	capturedAt = capturedAt.UTC()
	name := Filename(token, capturedAt)

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return session.FileRef{}, fmt.Errorf("writing image blob: %w", err)
	}

	s.logger.Debug("stored image", "name", name, "bytes", len(data))
	return session.FileRef{Name: name, CapturedAt: capturedAt}, nil
}

// Path resolves a stored filename to its on-disk path. Names containing path
// separators or traversal elements are rejected so the content directory can
// be served directly.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Filename builds the stored name for a capture: {token}_{timestamp}.jpg
// with microsecond precision, matching the snapshot's FileRef entries.
func Filename(token string, capturedAt time.Time) string {
	ts := capturedAt.UTC()
	return fmt.Sprintf("%s_%s%06d.jpg", token, ts.Format("20060102T150405"), ts.Nanosecond()/1000)
}
