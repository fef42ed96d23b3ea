package service

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"clinicflow/drafthub/internal/config"
	"clinicflow/drafthub/internal/draft"
	"clinicflow/drafthub/internal/repository"
)

const minSweepInterval = time.Second

var formKeyPattern = regexp.MustCompile(`^[A-Za-z0-9:_.\-]{1,200}$`)

// DraftView is what a form sees when it asks for its draft.
type DraftView struct {
	HasDraft bool            `json:"has_draft"`
	Data     json.RawMessage `json:"data"`
	AgeMs    *int64          `json:"age_ms"`
}

// DraftService keeps one debounced draft store per (user, form key).
type DraftService interface {
	Save(ctx context.Context, userID uuid.UUID, formKey string, data json.RawMessage) error
	Get(ctx context.Context, userID uuid.UUID, formKey string) (*DraftView, error)
	Clear(ctx context.Context, userID uuid.UUID, formKey string) error
	Age(ctx context.Context, userID uuid.UUID, formKey string) (*int64, error)
	// Run reaps idle sessions until ctx is done.
	Run(ctx context.Context)
	// Shutdown flushes pending saves and closes every session.
	Shutdown()
}

type draftSession struct {
	store    *draft.Store[json.RawMessage]
	lastUsed time.Time
}

type draftService struct {
	stateStore repository.StateStore
	cfg        config.DraftConfig
	clock      clockwork.Clock
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*draftSession
	closed   bool
}

func NewDraftService(stateStore repository.StateStore, cfg config.DraftConfig, clock clockwork.Clock, logger *zap.Logger) DraftService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &draftService{
		stateStore: stateStore,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		sessions:   make(map[string]*draftSession),
	}
}

func (s *draftService) Save(ctx context.Context, userID uuid.UUID, formKey string, data json.RawMessage) error {
	store, _, err := s.session(ctx, userID, formKey)
	if err != nil {
		return err
	}
	store.SaveDraft(data)
	return nil
}

func (s *draftService) Get(ctx context.Context, userID uuid.UUID, formKey string) (*DraftView, error) {
	store, fresh, err := s.session(ctx, userID, formKey)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// Another instance may have written since this session loaded.
		store.Reload(ctx)
	}

	view := &DraftView{}
	if data, ok := store.DraftData(); ok {
		view.HasDraft = true
		view.Data = data
		if age, ok := store.DraftAge(ctx); ok {
			ms := age.Milliseconds()
			view.AgeMs = &ms
		}
	}
	return view, nil
}

func (s *draftService) Clear(ctx context.Context, userID uuid.UUID, formKey string) error {
	store, _, err := s.session(ctx, userID, formKey)
	if err != nil {
		return err
	}
	store.ClearDraft(ctx)
	return nil
}

func (s *draftService) Age(ctx context.Context, userID uuid.UUID, formKey string) (*int64, error) {
	store, _, err := s.session(ctx, userID, formKey)
	if err != nil {
		return nil, err
	}
	age, ok := store.DraftAge(ctx)
	if !ok {
		return nil, nil
	}
	ms := age.Milliseconds()
	return &ms, nil
}

func (s *draftService) Run(ctx context.Context) {
	interval := s.cfg.SessionIdle / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.reapIdle()
			s.purgeExpired(ctx)
		}
	}
}

func (s *draftService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*draftSession)
	s.closed = true
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.store.Flush()
		sess.store.Close()
	}
	s.logger.Info("draft sessions closed", zap.Int("count", len(sessions)))
}

// session returns the live store for the user's form, opening it if needed.
// fresh is true when the store was just loaded from the backend.
func (s *draftService) session(ctx context.Context, userID uuid.UUID, formKey string) (*draft.Store[json.RawMessage], bool, error) {
	if !formKeyPattern.MatchString(formKey) {
		return nil, false, ErrInvalidDraftKey
	}
	key := draft.Key(s.cfg.KeyPrefix, userID.String(), formKey)
	now := s.clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false, ErrServiceClosed
	}
	if sess, ok := s.sessions[key]; ok {
		sess.lastUsed = now
		s.mu.Unlock()
		return sess.store, false, nil
	}
	s.mu.Unlock()

	// The initial load does I/O, so open outside the lock.
	store, err := draft.New[json.RawMessage](ctx, s.stateStore, key,
		draft.WithTTL(s.cfg.TTL),
		draft.WithDebounce(s.cfg.Debounce),
		draft.WithEnabled(s.cfg.Enabled),
		draft.WithRetentionGrace(s.cfg.RetentionGrace),
		draft.WithClock(s.clock),
		draft.WithLogger(s.logger),
	)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		store.Close()
		return nil, false, ErrServiceClosed
	}
	if sess, ok := s.sessions[key]; ok {
		// Lost the race to a concurrent open.
		store.Close()
		sess.lastUsed = now
		return sess.store, false, nil
	}
	s.sessions[key] = &draftSession{store: store, lastUsed: now}
	return store, true, nil
}

func (s *draftService) reapIdle() {
	cutoff := s.clock.Now().Add(-s.cfg.SessionIdle)

	s.mu.Lock()
	var idle []*draftSession
	for key, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.store.Flush()
		sess.store.Close()
	}
	if len(idle) > 0 {
		s.logger.Debug("reaped idle draft sessions", zap.Int("count", len(idle)))
	}
}

func (s *draftService) purgeExpired(ctx context.Context) {
	purger, ok := s.stateStore.(repository.Purger)
	if !ok {
		return
	}
	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn("purge expired drafts failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("purged expired drafts", zap.Int64("count", n))
	}
}

// ensure draftService implements DraftService
var _ DraftService = (*draftService)(nil)
