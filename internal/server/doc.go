// Package server wires the lantern-server components and owns the HTTP surface.
//
// # Overview
//
// The server package is the central coordinator: it opens the session store
// from its snapshot, prepares the upload directory, selects the notification
// backend, and serves the HTTP API over a plain TCP listener or a Tailscale
// tsnet node.
//
// # HTTP API
//
//   - POST /create - Create a capture session, returns token and page link
//   - POST /wrap_create - Create a session wrapping a target URL
//   - GET /s/{token} - Consent/capture page
//   - GET /w/{token} - Wrapper page embedding the target URL
//   - POST /upload_info/{token} - Ingest one telemetry event
//   - POST /upload_image/{token} - Ingest one base64 image
//   - GET /session_data/{token} - Full session record as JSON
//   - GET /uploads/{filename} - Stored image blobs
//   - GET /health - Liveness check
//   - GET /health/store - Snapshot persistence health (503 when degraded)
//   - GET /static/ - Embedded page assets
//
// Errors are returned as {"error": "<code>"} with a matching status code:
// invalid_request (400), invalid_url (400), bad_payload (400),
// unknown_token (404), image_too_large (413).
//
// # Listeners
//
// With tailscale.enabled the server joins a tailnet via tsnet and serves
// plain HTTP on :80, HTTPS with Tailscale-provisioned certs on :443, or
// publicly over Funnel. Otherwise it binds server.http_addr directly.
//
// # Lifecycle
//
// Start the server:
//
//	srv, err := server.New(cfg, logger)
//	err = srv.Run(ctx)
//
// Run blocks until the context is canceled, then shuts the HTTP server down
// gracefully and flushes a final store snapshot.
package server
