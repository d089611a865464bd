// ABOUTME: Event ingestion pipeline for telemetry and image uploads
// ABOUTME: Validates events, appends them to the session store, and fires detached notifications

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lanternlink/lantern/internal/media"
	"github.com/lanternlink/lantern/internal/session"
)

// Notifier relays session events to an external messaging endpoint. It is
// satisfied by *notify.Dispatcher; the indirection keeps ingestion testable
// without a messaging backend.
type Notifier interface {
	SendText(chatID, text string) bool
	SendPhoto(chatID, path, caption, filename string) bool
}

// InfoPayload is the validated body of a telemetry event. Both fields are
// optional and stored as reported by the client.
type InfoPayload struct {
	Battery *float64
	Coords  *session.Coords
}

// Ingestor validates inbound events and appends them through the session
// store. Notification dispatch is detached: ingestion latency and success
// are independent of notification outcome.
type Ingestor struct {
	store    *session.Store
	media    *media.Store
	notifier Notifier
	logger   *slog.Logger
}

// New creates an ingestor.
func New(store *session.Store, mediaStore *media.Store, notifier Notifier, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:    store,
		media:    mediaStore,
		notifier: notifier,
		logger:   logger.With("component", "ingest"),
	}
}

// IngestInfo accepts one telemetry event for the session. The event
// timestamp is taken at acceptance time and the source address prefers the
// forwarded-for header over the direct connection address. Once acceptance
// begins the append is not abandoned on request cancellation.
func (i *Ingestor) IngestInfo(ctx context.Context, tok string, p InfoPayload, remoteAddr, forwardedFor string) (session.Visit, error) {
	if err := ctx.Err(); err != nil {
		return session.Visit{}, err
	}

	visit := session.Visit{
		Timestamp: time.Now().UTC(),
		IP:        ClientIP(remoteAddr, forwardedFor),
		Battery:   p.Battery,
		Coords:    p.Coords,
	}

	rec, err := i.store.AppendVisit(tok, visit)
	if err != nil {
		return session.Visit{}, err
	}

	go i.notifyVisit(rec, visit)
	return visit, nil
}

// IngestImage decodes, bounds, and persists one image payload, then appends
// its file reference to the session. The token is checked before any decode
// or filesystem work.
func (i *Ingestor) IngestImage(ctx context.Context, tok, raw string) (session.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return session.FileRef{}, err
	}

	if _, err := i.store.Get(tok); err != nil {
		return session.FileRef{}, err
	}

	data, err := media.Decode(raw)
	if err != nil {
		return session.FileRef{}, err
	}

	ref, err := i.media.Save(tok, data, time.Now().UTC())
	if err != nil {
		return session.FileRef{}, fmt.Errorf("persisting image: %w", err)
	}

	rec, err := i.store.AppendFile(tok, ref)
	if err != nil {
		// Sessions are never deleted, so the token vanishing between the
		// existence check and the append cannot happen in practice.
		return session.FileRef{}, err
	}

	go i.notifyPhoto(rec, ref)
	return ref, nil
}

// notifyVisit sends a best-effort telemetry summary. Runs detached from the
// ingesting request.
func (i *Ingestor) notifyVisit(rec *session.Record, v session.Visit) {
	if rec.ChatID == "" {
		return
	}

	battery := "n/a"
	if v.Battery != nil {
		battery = fmt.Sprintf("%.0f%%", *v.Battery*100)
	}
	coords := "n/a"
	if v.Coords != nil {
		coords = fmt.Sprintf("%.6f, %.6f", v.Coords.Lat, v.Coords.Lon)
	}

	summary := fmt.Sprintf("Session %s - info at %s\nIP: %s\nBattery: %s\nCoords: %s",
		rec.Token, v.Timestamp.Format(time.RFC3339), v.IP, battery, coords)
	i.notifier.SendText(rec.ChatID, summary)
}

// notifyPhoto sends the stored image, falling back inside the dispatcher to
// a retrieval link. Runs detached from the ingesting request.
func (i *Ingestor) notifyPhoto(rec *session.Record, ref session.FileRef) {
	if rec.ChatID == "" {
		return
	}

	path, err := i.media.Path(ref.Name)
	if err != nil {
		i.logger.Warn("stored image missing for notification", "file", ref.Name, "error", err)
		return
	}

	caption := fmt.Sprintf("Session %s - photo %s", rec.Token, ref.CapturedAt.Format(time.RFC3339))
	i.notifier.SendPhoto(rec.ChatID, path, caption, ref.Name)
}

// ClientIP picks the event source address: the first hop of a forwarded-for
// header when present, else the host part of the connection address.
func ClientIP(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
