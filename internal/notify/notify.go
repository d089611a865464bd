// ABOUTME: Best-effort notification dispatcher for session events
// ABOUTME: Wraps a messaging backend with bounded timeouts and a photo-to-link fallback

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// textTimeout bounds outbound text sends.
var textTimeout = 10 * time.Second

// photoTimeout bounds outbound photo sends, which can carry megabytes.
var photoTimeout = 30 * time.Second

// Sender delivers a single message to an external messaging endpoint.
// Implementations report delivery as a boolean and never panic or return
// errors: a notification is best-effort by contract.
type Sender interface {
	// SendText delivers a plain text message to the destination chat.
	SendText(ctx context.Context, chatID, text string) bool

	// SendPhoto delivers the image at path with an optional caption.
	SendPhoto(ctx context.Context, chatID, path, caption string) bool
}

// Dispatcher relays session events to a Sender. A nil Sender (no backend
// configured) makes every send a no-op returning false. Dispatcher calls are
// made from detached goroutines by the ingestion pipeline and must never
// block a request or surface a failure to it.
type Dispatcher struct {
	sender  Sender
	baseURL string
	logger  *slog.Logger
}

// New creates a dispatcher. baseURL is the externally reachable server URL,
// used to build retrieval links for the photo fallback.
func New(sender Sender, baseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		baseURL: baseURL,
		logger:  logger.With("component", "notify"),
	}
}

// Enabled reports whether a messaging backend is configured.
func (d *Dispatcher) Enabled() bool {
	return d.sender != nil
}

// SendText delivers text to chatID. Returns false without sending when no
// backend or destination is configured.
func (d *Dispatcher) SendText(chatID, text string) bool {
	if d.sender == nil || chatID == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), textTimeout)
	defer cancel()

	ok := d.sender.SendText(ctx, chatID, text)
	if !ok {
		d.logger.Warn("text notification failed", "chat_id", chatID)
	}
	return ok
}

// SendPhoto delivers the stored image at path. If photo delivery fails, it
// falls back to a text message carrying a retrieval link for the file; if
// that also fails, the failure is swallowed. The triggering caller never
// learns the outcome beyond the returned boolean.
func (d *Dispatcher) SendPhoto(chatID, path, caption, filename string) bool {
	if d.sender == nil || chatID == "" {
		return false
	}

	photoCtx, cancelPhoto := context.WithTimeout(context.Background(), photoTimeout)
	defer cancelPhoto()

	if d.sender.SendPhoto(photoCtx, chatID, path, caption) {
		return true
	}
	d.logger.Warn("photo notification failed, falling back to link", "chat_id", chatID, "file", filename)

	// The failed photo attempt may have consumed its entire budget, so the
	// fallback gets its own text window.
	textCtx, cancelText := context.WithTimeout(context.Background(), textTimeout)
	defer cancelText()

	link := fmt.Sprintf("%s/uploads/%s", d.baseURL, filename)
	ok := d.sender.SendText(textCtx, chatID, "Image saved: "+link)
	if !ok {
		d.logger.Warn("photo fallback notification failed", "chat_id", chatID, "file", filename)
	}
	return ok
}
