// ABOUTME: Tests for image payload decoding and blob persistence
// ABOUTME: Covers data-URL stripping, size bounds, filename format, and traversal rejection

package media

import (
	"encoding/base64"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RawBase64(t *testing.T) {
	want := []byte("hello image bytes")
	got, err := Decode(base64.StdEncoding.EncodeToString(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode_DataURL(t *testing.T) {
	want := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	raw := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(want)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode_UnpaddedBase64(t *testing.T) {
	want := []byte("no padding here!")
	raw := strings.TrimRight(base64.StdEncoding.EncodeToString(want), "=")

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode_BadPayload(t *testing.T) {
	cases := []string{
		"",
		"%%% not base64 %%%",
		"data:image/jpeg;base64",
	}
	for _, raw := range cases {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrBadPayload, "payload %q", raw)
	}
}

func TestDecode_TooLarge(t *testing.T) {
	big := make([]byte, MaxImageBytes+1)
	_, err := Decode(base64.StdEncoding.EncodeToString(big))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecode_EncodedLengthBound(t *testing.T) {
	// An absurdly long payload is rejected without decoding.
	raw := strings.Repeat("A", maxEncodedLen+100)
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestStore_SaveRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir(), slog.Default())
	require.NoError(t, err)

	data := []byte{0xff, 0xd8, 0x00, 0x11, 0x22}
	captured := time.Date(2026, 8, 28, 12, 34, 56, 789123000, time.UTC)

	ref, err := s.Save("deadbeefdeadbeefdeadbeefdeadbeef", data, captured)
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeef_20260828T123456789123.jpg", ref.Name)
	assert.Equal(t, captured, ref.CapturedAt)

	path, err := s.Path(ref.Name)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStore_NamesSortChronologically(t *testing.T) {
	base := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	earlier := Filename("tok", base)
	later := Filename("tok", base.Add(5*time.Microsecond))
	assert.Less(t, earlier, later)
}

func TestStore_PathRejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir(), slog.Default())
	require.NoError(t, err)

	for _, name := range []string{"../etc/passwd", "a/b.jpg", ".hidden", ""} {
		_, err := s.Path(name)
		assert.Error(t, err, "name %q", name)
	}
}
