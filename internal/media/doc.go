// Package media decodes image payloads and persists them as blobs.
//
// # Overview
//
// Decode accepts plain base64 or data-URL payloads and enforces a
// 5,000,000-byte decoded limit, pre-checked on the encoded length so
// oversized payloads are rejected before any decode work.
//
// The Store writes blobs into a flat directory as
// {token}_{YYYYMMDDTHHMMSS}{microseconds}.jpg, so names are unique per
// session and sort chronologically. Path refuses names with traversal
// elements, making the directory safe to serve directly.
package media
