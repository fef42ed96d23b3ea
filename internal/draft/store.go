// Package draft keeps in-progress form state recoverable across reloads.
//
// A Store debounces saves of a form's state, persists only the settled value
// of each burst to a repository.StateStore under one key, and exposes whether
// a recoverable draft exists. Backend failures never reach the caller: they
// are logged and the store degrades to "no draft".
package draft

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"clinicflow/drafthub/internal/debounce"
	"clinicflow/drafthub/internal/repository"
)

const (
	DefaultTTL            = 7 * 24 * time.Hour
	DefaultDebounce       = 2 * time.Second
	DefaultRetentionGrace = 24 * time.Hour
	DefaultOpTimeout      = 5 * time.Second
)

var ErrEmptyKey = errors.New("draft key is required")

// Option configures a Store.
type Option func(*config)

type config struct {
	ttl       time.Duration
	debounce  time.Duration
	enabled   bool
	grace     time.Duration
	opTimeout time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

func defaultConfig() config {
	return config{
		ttl:       DefaultTTL,
		debounce:  DefaultDebounce,
		enabled:   true,
		grace:     DefaultRetentionGrace,
		opTimeout: DefaultOpTimeout,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
	}
}

// WithTTL sets how long a written draft stays valid. Negative values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithDebounce sets the quiet period before a save is committed.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithEnabled toggles saving. Reads happen regardless.
func WithEnabled(enabled bool) Option {
	return func(c *config) { c.enabled = enabled }
}

// WithRetentionGrace sets how long past its expiry a draft may linger in the
// backend before the backend itself reclaims it.
func WithRetentionGrace(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithOpTimeout bounds backend calls made from the debounce timer.
func WithOpTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// pendingSave tags a debounced value with the epoch it was issued in, so a
// settle that races with ClearDraft or SetKey can be recognized as stale.
type pendingSave[T any] struct {
	epoch uint64
	data  T
}

// Store is the draft-recovery state for one form key.
type Store[T any] struct {
	backend repository.StateStore
	cfg     config
	saver   *debounce.Debouncer[pendingSave[T]]

	mu       sync.Mutex
	key      string
	enabled  bool
	epoch    uint64
	closed   bool
	hasDraft bool
	data     T
}

// New creates a Store for key and performs the initial load.
func New[T any](ctx context.Context, backend repository.StateStore, key string, opts ...Option) (*Store[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store[T]{
		backend: backend,
		cfg:     cfg,
		key:     key,
		enabled: cfg.enabled,
	}
	s.saver = debounce.New(cfg.debounce, s.persist, debounce.WithClock(cfg.clock))

	s.mu.Lock()
	s.loadLocked(ctx)
	s.mu.Unlock()
	return s, nil
}

// Key returns the storage key currently addressed.
func (s *Store[T]) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// HasDraft reports whether a non-expired draft exists under the key, as of
// the last load or settled save.
func (s *Store[T]) HasDraft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasDraft
}

// DraftData returns the recovered draft, if any.
func (s *Store[T]) DraftData() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.hasDraft
}

// SaveDraft schedules data to be persisted once saves have been quiet for
// the debounce period. Only the last value of a burst is written.
func (s *Store[T]) SaveDraft(data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.closed {
		return
	}
	s.saver.Push(pendingSave[T]{epoch: s.epoch, data: data})
}

// ClearDraft removes the draft from the backend and drops any pending save.
// Backend failures are logged; in-memory state is reset regardless.
func (s *Store[T]) ClearDraft(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discardPendingLocked()
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.cfg.logger.Warn("draft: clear failed", zap.String("key", s.key), zap.Error(err))
	}
	s.resetLocked()
}

// DraftAge re-reads the backend and returns how long ago the current draft
// was written. Expired entries still report an age and are not evicted.
func (s *Store[T]) DraftAge(ctx context.Context) (time.Duration, bool) {
	key := s.Key()

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		s.cfg.logger.Warn("draft: age lookup failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	l := Decode[T](raw, s.cfg.clock.Now())
	switch l.Status {
	case StatusPresent, StatusExpired:
		return l.Envelope.Age(s.cfg.clock.Now()), true
	default:
		return 0, false
	}
}

// Reload re-reads the backend for the current key. A pending save is kept.
func (s *Store[T]) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.loadLocked(ctx)
}

// SetKey retargets the store. Any pending save for the old key is dropped
// and state is loaded from the new key.
func (s *Store[T]) SetKey(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == s.key || s.closed {
		return nil
	}
	s.discardPendingLocked()
	s.key = key
	s.resetLocked()
	s.loadLocked(ctx)
	return nil
}

// SetEnabled toggles saving. Disabling drops a pending save.
func (s *Store[T]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled && !enabled {
		s.discardPendingLocked()
	}
	s.enabled = enabled
}

// SetDebounce changes the quiet period; a pending save restarts its wait.
func (s *Store[T]) SetDebounce(d time.Duration) {
	s.saver.SetDelay(d)
}

// Pending reports whether a save is waiting for the debounce to settle.
func (s *Store[T]) Pending() bool {
	return s.saver.Pending()
}

// Flush writes a pending save immediately.
func (s *Store[T]) Flush() bool {
	return s.saver.Flush()
}

// Close cancels any pending save. The store must not be used afterwards.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.discardPendingLocked()
	s.mu.Unlock()

	s.saver.Close()
}

// persist runs when a debounced save settles.
func (s *Store[T]) persist(p pendingSave[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || p.epoch != s.epoch {
		return
	}

	env := NewEnvelope(p.data, s.cfg.clock.Now(), s.cfg.ttl)
	raw, err := Encode(env)
	if err != nil {
		s.cfg.logger.Error("draft: encode failed", zap.String("key", s.key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.opTimeout)
	defer cancel()
	if err := s.backend.Set(ctx, s.key, raw, s.cfg.ttl+s.cfg.grace); err != nil {
		s.cfg.logger.Warn("draft: save failed", zap.String("key", s.key), zap.Error(err))
		return
	}

	s.hasDraft = true
	s.data = p.data
	s.cfg.logger.Debug("draft: saved",
		zap.String("key", s.key),
		zap.Int64("timestamp", env.Timestamp),
		zap.Int64("expires_at", env.ExpiresAt),
	)
}

func (s *Store[T]) loadLocked(ctx context.Context) {
	s.resetLocked()

	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.cfg.logger.Warn("draft: load failed", zap.String("key", s.key), zap.Error(err))
		return
	}

	l := Decode[T](raw, s.cfg.clock.Now())
	switch l.Status {
	case StatusPresent:
		s.hasDraft = true
		s.data = l.Envelope.Data
	case StatusExpired:
		if err := s.backend.Delete(ctx, s.key); err != nil {
			s.cfg.logger.Warn("draft: evict expired failed", zap.String("key", s.key), zap.Error(err))
		}
	case StatusCorrupt:
		s.cfg.logger.Warn("draft: discarding unreadable draft", zap.String("key", s.key), zap.Error(l.Err))
	}
}

// discardPendingLocked invalidates in-flight settles and cancels the timer.
func (s *Store[T]) discardPendingLocked() {
	s.epoch++
	s.saver.Cancel()
}

func (s *Store[T]) resetLocked() {
	var zero T
	s.hasDraft = false
	s.data = zero
}

// Key joins non-empty parts into a draft key, e.g. Key("patient", "42", "edit")
// yields "patient:42:edit".
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}
