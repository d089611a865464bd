// Package notify relays session events to an external messaging endpoint.
//
// # Overview
//
// A Dispatcher wraps a Sender backend (Telegram or Matrix) with bounded
// timeouts and a photo-to-link fallback. All sends are best-effort: failures
// are logged and swallowed, and the ingestion pipeline never blocks on or
// learns about delivery problems. A nil Sender cleanly disables
// notifications.
//
// # Backends
//
// Telegram chat IDs are decimal chat identifiers; Matrix chat IDs are room
// IDs the configured account has already joined. Photo delivery that fails
// falls back to a text message carrying a retrieval link built from the
// server's base URL.
package notify
