// Package session provides the session lifecycle engine: a concurrency-safe
// token -> Record store with durable JSON snapshot persistence.
//
// # Model
//
//   - Record: one tracked session and its accumulated events
//   - Visit: one telemetry capture (IP, battery, coordinates)
//   - FileRef: one stored image blob, named {token}_{timestamp}
//
// Tokens are unique for the lifetime of the store. Visits and Files are
// append-only and kept in arrival order. Records have no terminal state:
// retention is an external concern, and no delete or expire operation exists.
//
// # Persistence
//
// Every mutating call rewrites the full snapshot (temp file + rename) before
// returning, while holding the store's write lock. This trades throughput
// for crash consistency: once a caller sees a mutation acknowledged, it is
// on disk. A failed snapshot write is an explicit, documented exception: the
// in-memory mutation is kept, the caller is not failed, and the condition is
// reported via Health for an out-of-band health signal.
//
// # Errors
//
//   - ErrNotFound: unknown token, checked before any record is touched
//   - ErrInvalidTargetURL: wrap target is not an absolute http(s) URL
//   - ErrTokenCollision: token generation kept colliding (broken entropy)
package session
