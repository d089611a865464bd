// ABOUTME: Tests for the notification dispatcher
// ABOUTME: Validates no-op behavior, timeout wiring, and the photo-to-link fallback

package notify

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records calls and returns scripted results.
type fakeSender struct {
	mu        sync.Mutex
	textOK    bool
	photoOK   bool
	texts     []string
	photos    []string
	lastChat  string
	sawDeadln bool
}

func (f *fakeSender) SendText(ctx context.Context, chatID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.sawDeadln = ctx.Deadline()
	f.lastChat = chatID
	f.texts = append(f.texts, text)
	return f.textOK
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID, path, caption string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastChat = chatID
	f.photos = append(f.photos, path)
	return f.photoOK
}

func TestDispatcher_NoSenderIsNoop(t *testing.T) {
	d := New(nil, "http://localhost:8080", slog.Default())

	assert.False(t, d.Enabled())
	assert.False(t, d.SendText("123", "hello"))
	assert.False(t, d.SendPhoto("123", "/tmp/x.jpg", "cap", "x.jpg"))
}

func TestDispatcher_EmptyChatIDIsNoop(t *testing.T) {
	sender := &fakeSender{textOK: true, photoOK: true}
	d := New(sender, "http://localhost:8080", slog.Default())

	assert.False(t, d.SendText("", "hello"))
	assert.Empty(t, sender.texts)
}

func TestDispatcher_SendText(t *testing.T) {
	sender := &fakeSender{textOK: true}
	d := New(sender, "http://localhost:8080", slog.Default())

	ok := d.SendText("123", "session created")
	assert.True(t, ok)
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "session created", sender.texts[0])
	assert.Equal(t, "123", sender.lastChat)
	assert.True(t, sender.sawDeadln, "outbound call must carry a deadline")
}

func TestDispatcher_PhotoSuccessSkipsFallback(t *testing.T) {
	sender := &fakeSender{photoOK: true}
	d := New(sender, "http://localhost:8080", slog.Default())

	ok := d.SendPhoto("123", "/data/uploads/tok_x.jpg", "photo", "tok_x.jpg")
	assert.True(t, ok)
	assert.Len(t, sender.photos, 1)
	assert.Empty(t, sender.texts)
}

func TestDispatcher_PhotoFailureFallsBackToLink(t *testing.T) {
	sender := &fakeSender{photoOK: false, textOK: true}
	d := New(sender, "https://lantern.example", slog.Default())

	ok := d.SendPhoto("123", "/data/uploads/tok_x.jpg", "photo", "tok_x.jpg")
	assert.True(t, ok)
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "Image saved: https://lantern.example/uploads/tok_x.jpg", sender.texts[0])
}

// slowPhotoSender models a backend whose photo send hangs until its context
// deadline expires, the typical transport failure. The text path only
// succeeds when handed a context that is still alive.
type slowPhotoSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *slowPhotoSender) SendPhoto(ctx context.Context, chatID, path, caption string) bool {
	<-ctx.Done()
	return false
}

func (s *slowPhotoSender) SendText(ctx context.Context, chatID, text string) bool {
	if ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return true
}

func TestDispatcher_FallbackSurvivesExhaustedPhotoBudget(t *testing.T) {
	oldPhoto := photoTimeout
	photoTimeout = 50 * time.Millisecond
	defer func() { photoTimeout = oldPhoto }()

	sender := &slowPhotoSender{}
	d := New(sender, "https://lantern.example", slog.Default())

	ok := d.SendPhoto("123", "/data/uploads/tok_x.jpg", "photo", "tok_x.jpg")
	assert.True(t, ok, "fallback must deliver even after the photo window is spent")
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "Image saved: https://lantern.example/uploads/tok_x.jpg", sender.texts[0])
}

func TestDispatcher_DoubleFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{photoOK: false, textOK: false}
	d := New(sender, "https://lantern.example", slog.Default())

	// Both attempts fail; the dispatcher reports false and nothing escapes.
	ok := d.SendPhoto("123", "/data/uploads/tok_x.jpg", "photo", "tok_x.jpg")
	assert.False(t, ok)
	assert.Len(t, sender.photos, 1)
	assert.Len(t, sender.texts, 1)
}
