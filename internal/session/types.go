// ABOUTME: Data types for device-session records and their telemetry events
// ABOUTME: Defines Record, Visit, Coords, FileRef and the store error sentinels

package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session token does not exist.
var ErrNotFound = errors.New("session not found")

// ErrInvalidTargetURL is returned when a wrap session is created with a
// target that is not an absolute http or https URL.
var ErrInvalidTargetURL = errors.New("invalid target url")

// ErrTokenCollision is returned when token generation repeatedly produced a
// token that already exists. With 128-bit tokens this indicates a broken
// entropy source rather than bad luck.
var ErrTokenCollision = errors.New("token collision after retries")

// Coords is a client-reported geolocation fix. Values are stored as
// reported, without server-side validation.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Visit is one telemetry capture tied to a session. Battery and Coords are
// optional; IP is taken from the request, not the payload.
type Visit struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Battery   *float64  `json:"battery,omitempty"`
	Coords    *Coords   `json:"coords,omitempty"`
}

// FileRef points at one stored image blob. Name embeds the session token and
// a microsecond capture timestamp, so names sort chronologically within a
// session.
type FileRef struct {
	Name       string    `json:"name"`
	CapturedAt time.Time `json:"captured_at"`
}

// Record is the durable state of one tracked session. Visits and Files are
// append-only: entries are never mutated or removed once stored.
type Record struct {
	Token     string    `json:"token"`
	Label     string    `json:"label,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Wrap      bool      `json:"wrap,omitempty"`
	TargetURL string    `json:"target_url,omitempty"`
	Visits    []Visit   `json:"visits"`
	Files     []FileRef `json:"files"`
}

// clone returns a deep copy so callers never share memory with the store.
// The optional Visit pointers are copied too, not just the slices.
func (r *Record) clone() *Record {
	cp := *r
	cp.Visits = make([]Visit, len(r.Visits))
	for i, v := range r.Visits {
		if v.Battery != nil {
			b := *v.Battery
			v.Battery = &b
		}
		if v.Coords != nil {
			c := *v.Coords
			v.Coords = &c
		}
		cp.Visits[i] = v
	}
	cp.Files = make([]FileRef, len(r.Files))
	copy(cp.Files, r.Files)
	return &cp
}
