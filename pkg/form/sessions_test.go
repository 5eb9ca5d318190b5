package form

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/sections"
)

type memoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func (m *memoryStore) SaveFormSession(_ context.Context, id string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = st
	return nil
}

func (m *memoryStore) LoadFormSessions(context.Context) (map[string]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) DeleteFormSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func TestSessions_PersistAndReload(t *testing.T) {
	quiet(t)
	ctx := context.Background()
	store := &memoryStore{states: map[string]State{}}
	factory := func() Submitter { return &fakeSubmitter{} }

	s := NewSessions(factory, store)
	id, c, err := s.Create(ctx, sections.Default())
	require.NoError(t, err)
	fill(t, c, validValues())
	_, err = c.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, id))

	reloaded := NewSessions(factory, store)
	n, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rc, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, rc.Current())
	assert.Equal(t, "Documentation Assistant", rc.Value(sections.FieldProjectName))

	require.NoError(t, reloaded.Delete(ctx, id))
	_, ok = reloaded.Get(id)
	assert.False(t, ok)
	assert.Empty(t, store.states)
	assert.Error(t, reloaded.Save(ctx, id))
}

func TestSessions_WithoutStore(t *testing.T) {
	quiet(t)
	s := NewSessions(nil, nil)
	id, c, err := s.Create(context.Background(), sections.Basics())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, c.Total())
	assert.Equal(t, 1, s.Len())

	n, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessions_PruneIdle(t *testing.T) {
	quiet(t)
	ctx := context.Background()
	store := &memoryStore{states: map[string]State{}}
	var subs []*fakeSubmitter
	s := NewSessions(func() Submitter {
		sub := &fakeSubmitter{}
		subs = append(subs, sub)
		return sub
	}, store)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	var removed []string
	s.OnRemove(func(id string) { removed = append(removed, id) })

	stale, _, err := s.Create(ctx, sections.Basics())
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	fresh, _, err := s.Create(ctx, sections.Basics())
	require.NoError(t, err)

	n, err := s.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{stale}, removed)
	_, ok := s.Get(stale)
	assert.False(t, ok)
	assert.NotContains(t, store.states, stale)
	assert.Contains(t, store.states, fresh)
	assert.Equal(t, 1, subs[0].releases, "pruning releases the live document")
	assert.Zero(t, subs[1].releases)

	// Get counts as use.
	now = now.Add(50 * time.Minute)
	_, ok = s.Get(fresh)
	require.True(t, ok)
	now = now.Add(50 * time.Minute)
	n, err = s.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, s.Len())
}
