// Package ingest accepts telemetry and image events for known sessions.
//
// # Overview
//
// The Ingestor validates the session token, stamps server-side metadata
// (acceptance timestamp, client IP), appends the event through the session
// store, and fires a notification on a detached goroutine. Ingestion latency
// and success are independent of notification outcome.
//
// The client IP prefers the first X-Forwarded-For hop over the direct
// connection address, since deployments commonly sit behind a proxy or
// tunnel.
package ingest
