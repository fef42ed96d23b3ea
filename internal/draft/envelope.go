package draft

import (
	"encoding/json"
	"time"
)

// Envelope is the persisted record for one draft. Timestamps are epoch
// milliseconds so the wire form matches what browser clients store.
type Envelope[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
	ExpiresAt int64 `json:"expiresAt"`
}

// NewEnvelope stamps data as written at now and expiring ttl later.
// A negative ttl is clamped to zero so ExpiresAt >= Timestamp always holds.
func NewEnvelope[T any](data T, now time.Time, ttl time.Duration) Envelope[T] {
	if ttl < 0 {
		ttl = 0
	}
	ts := now.UnixMilli()
	return Envelope[T]{
		Data:      data,
		Timestamp: ts,
		ExpiresAt: ts + ttl.Milliseconds(),
	}
}

// Expired reports whether the envelope is stale at now.
func (e Envelope[T]) Expired(now time.Time) bool {
	return now.UnixMilli() > e.ExpiresAt
}

// Age is how long ago the envelope was written.
func (e Envelope[T]) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-e.Timestamp) * time.Millisecond
}

// Status classifies the outcome of reading a key.
type Status int

const (
	StatusAbsent Status = iota
	StatusPresent
	StatusExpired
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusPresent:
		return "present"
	case StatusExpired:
		return "expired"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Lookup is the decoded result of a raw backend value. Err is set only for
// StatusCorrupt and is meant for diagnostics, not control flow.
type Lookup[T any] struct {
	Status   Status
	Envelope Envelope[T]
	Err      error
}

// Found reports whether the lookup holds a usable, unexpired draft.
func (l Lookup[T]) Found() bool {
	return l.Status == StatusPresent
}

// Decode classifies raw backend bytes at now. A nil or empty value is absent.
func Decode[T any](raw []byte, now time.Time) Lookup[T] {
	if len(raw) == 0 {
		return Lookup[T]{Status: StatusAbsent}
	}
	var env Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return Lookup[T]{Status: StatusCorrupt, Err: err}
	}
	if env.Expired(now) {
		return Lookup[T]{Status: StatusExpired, Envelope: env}
	}
	return Lookup[T]{Status: StatusPresent, Envelope: env}
}

// Encode serializes an envelope for the backend.
func Encode[T any](env Envelope[T]) ([]byte, error) {
	return json.Marshal(env)
}
