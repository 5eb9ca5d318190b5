package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
)

// Store persists session snapshots.
type Store interface {
	SaveFormSession(ctx context.Context, id string, state State) error
	LoadFormSessions(ctx context.Context) (map[string]State, error)
	DeleteFormSession(ctx context.Context, id string) error
}

// SubmitterFactory creates the submitter owned by one session.
type SubmitterFactory func() Submitter

// Sessions is a registry of form controllers keyed by session id.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
	touched  map[string]time.Time
	onRemove []func(id string)
	now      func() time.Time
	logger   *logx.Logger

	factory SubmitterFactory
	store   Store
	opts    []Option
}

// NewSessions creates a registry. store may be nil.
func NewSessions(factory SubmitterFactory, store Store, opts ...Option) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Controller),
		touched:  make(map[string]time.Time),
		now:      time.Now,
		logger:   logx.NewLogger("form"),
		factory:  factory,
		store:    store,
		opts:     opts,
	}
}

func (s *Sessions) newSubmitter() Submitter {
	if s.factory == nil {
		return nil
	}
	return s.factory()
}

// Create starts a new session under cfg.
func (s *Sessions) Create(ctx context.Context, cfg sections.Config) (string, *Controller, error) {
	id := uuid.New().String()
	c := NewController(cfg, s.newSubmitter(), s.opts...)

	s.mu.Lock()
	s.sessions[id] = c
	s.touched[id] = s.now()
	s.mu.Unlock()

	if err := s.Save(ctx, id); err != nil {
		return id, c, err
	}
	return id, c, nil
}

// Get returns the controller for id and marks the session as used.
func (s *Sessions) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if ok {
		s.touched[id] = s.now()
	}
	return c, ok
}

// SetClock replaces the clock used for idle tracking. Tests only.
func (s *Sessions) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// OnRemove registers fn to run after a session is deleted or pruned.
func (s *Sessions) OnRemove(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemove = append(s.onRemove, fn)
}

// Save persists the current snapshot of id.
func (s *Sessions) Save(ctx context.Context, id string) error {
	if s.store == nil {
		return nil
	}
	c, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	if err := s.store.SaveFormSession(ctx, id, c.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

// Delete drops id and releases its document.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.sessions[id]
	delete(s.sessions, id)
	delete(s.touched, id)
	hooks := append(([]func(string))(nil), s.onRemove...)
	s.mu.Unlock()

	if ok {
		c.SetConfiguration(c.Config())
	}
	for _, fn := range hooks {
		fn(id)
	}
	if s.store == nil {
		return nil
	}
	if err := s.store.DeleteFormSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// Load restores every stored session. Generated documents are not restored.
func (s *Sessions) Load(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	states, err := s.store.LoadFormSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, st := range states {
		s.sessions[id] = Restore(st, s.newSubmitter(), s.opts...)
		s.touched[id] = now
	}
	return len(states), nil
}

// Len is the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune deletes every session not used for longer than maxIdle and returns
// how many were removed.
func (s *Sessions) Prune(ctx context.Context, maxIdle time.Duration) (int, error) {
	s.mu.RLock()
	cutoff := s.now().Add(-maxIdle)
	var idle []string
	for id, at := range s.touched {
		if at.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	var errs []error
	for _, id := range idle {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return len(idle), errors.Join(errs...)
}

// RunJanitor prunes idle sessions every interval until ctx is cancelled.
func (s *Sessions) RunJanitor(ctx context.Context, maxIdle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(ctx, maxIdle); err != nil {
				s.logger.Warn("Failed to prune idle sessions: %v", err)
			}
		}
	}
}
