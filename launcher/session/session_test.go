package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/logger"
	"github.com/liuran001/GameLauncher-Go/launcher/worker"
)

type memStore struct {
	mu      sync.Mutex
	results map[string][]launcher.Stat
}

func (m *memStore) RecordResult(_ context.Context, game string, stat launcher.Stat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string][]launcher.Stat)
	}
	m.results[game] = append(m.results[game], stat)
	return nil
}

func (m *memStore) BestResults(_ context.Context, game string) ([]launcher.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return launcher.TopStats(m.results[game]), nil
}

func (m *memStore) Clear(context.Context, string) error { return nil }
func (m *memStore) ClearAll(context.Context) error      { return nil }
func (m *memStore) Close() error                        { return nil }

type fakeGame struct {
	mu       sync.Mutex
	listener launcher.Listener
	result   launcher.Stat
	err      error
	started  chan struct{}
	finish   chan struct{}
}

func (g *fakeGame) Start(context.Context) error {
	if g.started != nil {
		close(g.started)
	}
	if g.finish != nil {
		<-g.finish
	}
	if g.err != nil {
		return g.err
	}
	g.mu.Lock()
	l := g.listener
	g.mu.Unlock()
	if l != nil {
		l.GameFinished(g.result)
	}
	return nil
}

func (g *fakeGame) Stats(context.Context) launcher.Stat { return g.result }

func (g *fakeGame) SetListener(l launcher.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}

func TestPlayRecordsResult(t *testing.T) {
	store := &memStore{}
	pool := worker.New(1)
	defer pool.Shutdown(context.Background())

	var notified []launcher.Stat
	r := New(store, pool, logger.Discard(), func(game string, stat launcher.Stat) {
		assert.Equal(t, "Dado", game)
		notified = append(notified, stat)
	})

	want := launcher.Stat{Key: "aciertos", Label: "Aciertos en 5 tiradas", Value: 3}
	s, err := r.Play(context.Background(), "Dado", &fakeGame{result: want})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Dado", s.Game)
	assert.Equal(t, []launcher.Stat{want}, s.Results)
	assert.Equal(t, []launcher.Stat{want}, notified)

	best, err := store.BestResults(context.Background(), "Dado")
	require.NoError(t, err)
	assert.Equal(t, []launcher.Stat{want}, best)
	assert.False(t, r.Running("Dado"))
}

func TestPlayBusy(t *testing.T) {
	r := New(&memStore{}, nil, logger.Discard(), nil)
	g := &fakeGame{started: make(chan struct{}), finish: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := r.Play(context.Background(), "Clicker", g)
		done <- err
	}()
	<-g.started
	assert.True(t, r.Running("Clicker"))

	_, err := r.Play(context.Background(), "Clicker", &fakeGame{})
	assert.ErrorIs(t, err, launcher.ErrBusy)

	_, err = r.Play(context.Background(), "Dado", &fakeGame{})
	assert.NoError(t, err)

	close(g.finish)
	require.NoError(t, <-done)
	assert.False(t, r.Running("Clicker"))
}

func TestPlayFailure(t *testing.T) {
	store := &memStore{}
	r := New(store, nil, logger.Discard(), nil)
	boom := &launcher.PlayError{Game: "Snake", Err: errors.New("boom")}

	s, err := r.Play(context.Background(), "Snake", &fakeGame{err: boom})
	var playErr *launcher.PlayError
	require.ErrorAs(t, err, &playErr)
	assert.Empty(t, s.Results)
	best, _ := store.BestResults(context.Background(), "Snake")
	assert.Empty(t, best)
	assert.False(t, r.Running("Snake"))
}

func TestCanceledWaitKeepsSlotUntilGameEnds(t *testing.T) {
	pool := worker.New(1)
	defer pool.Shutdown(context.Background())
	r := New(&memStore{}, pool, logger.Discard(), nil)
	g := &fakeGame{started: make(chan struct{}), finish: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Play(ctx, "Clicker", g)
		done <- err
	}()
	<-g.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.True(t, r.Running("Clicker"))
	_, err := r.Play(context.Background(), "Clicker", &fakeGame{})
	assert.ErrorIs(t, err, launcher.ErrBusy)

	close(g.finish)
	assert.Eventually(t, func() bool { return !r.Running("Clicker") }, time.Second, 5*time.Millisecond)
}

func TestCanceledBeforeStartReleasesSlot(t *testing.T) {
	pool := worker.New(1)
	defer pool.Shutdown(context.Background())
	r := New(&memStore{}, pool, logger.Discard(), nil)

	block := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-block }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queued := &fakeGame{started: make(chan struct{})}
	_, err := r.Play(ctx, "Dado", queued)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.Running("Dado"))

	close(block)
	_, err = r.Play(context.Background(), "Dado", &fakeGame{})
	require.NoError(t, err)
	select {
	case <-queued.started:
		t.Fatal("abandoned session started")
	default:
	}
}
