// Package session runs play sessions and records their outcome.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// FinishFunc is called for every result a game reports.
type FinishFunc func(game string, stat launcher.Stat)

// Session describes one completed call to Play.
type Session struct {
	ID       string
	Game     string
	Started  time.Time
	Duration time.Duration
	// Results holds what the game reported through its listener.
	Results []launcher.Stat
}

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// Runner starts games one session per game at a time, storing every
// reported result in the score store.
type Runner struct {
	store    launcher.ScoreStore
	pool     launcher.WorkerPool
	logger   launcher.Logger
	onFinish FinishFunc

	mu   sync.Mutex
	busy map[string]string
}

// New creates a runner. pool may be nil to run sessions on the caller.
func New(store launcher.ScoreStore, pool launcher.WorkerPool, logger launcher.Logger, onFinish FinishFunc) *Runner {
	return &Runner{
		store:    store,
		pool:     pool,
		logger:   logger.With("component", "session"),
		onFinish: onFinish,
		busy:     make(map[string]string),
	}
}

func (r *Runner) acquire(name, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.busy[name]; running {
		return false
	}
	r.busy[name] = id
	return true
}

func (r *Runner) release(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[name] == id {
		delete(r.busy, name)
	}
}

// Running reports whether a session of name is in progress.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.busy[name]
	return ok
}

// Play installs the recording listener and runs one session of game.
// It returns launcher.ErrBusy when the game is already running.
func (r *Runner) Play(ctx context.Context, name string, game launcher.Game) (Session, error) {
	s := &Session{ID: uuid.NewString(), Game: name, Started: time.Now()}
	if !r.acquire(name, s.ID) {
		return Session{}, fmt.Errorf("%s: %w", name, launcher.ErrBusy)
	}

	log := r.logger.With("game", name, "session", s.ID)
	var resultsMu sync.Mutex
	game.SetListener(launcher.ListenerFunc(func(stat launcher.Stat) {
		resultsMu.Lock()
		s.Results = append(s.Results, stat)
		resultsMu.Unlock()
		r.record(ctx, log, name, stat)
	}))

	log.Info("session started")
	// The slot belongs to the task once it starts: a canceled ctx stops
	// the wait, not the game.
	var state atomic.Int32
	run := func() error {
		if !state.CompareAndSwap(taskPending, taskRunning) {
			return ctx.Err()
		}
		defer r.release(name, s.ID)
		return game.Start(ctx)
	}
	var err error
	if r.pool != nil {
		err = r.pool.SubmitWaitContext(ctx, run)
		if state.CompareAndSwap(taskPending, taskAbandoned) {
			r.release(name, s.ID)
		}
	} else {
		err = run()
	}
	s.Duration = time.Since(s.Started)

	resultsMu.Lock()
	out := *s
	out.Results = append([]launcher.Stat(nil), s.Results...)
	resultsMu.Unlock()

	if err != nil {
		log.Warn("session failed", "error", err, "duration", out.Duration)
		return out, err
	}
	log.Info("session finished", "results", len(out.Results), "duration", out.Duration)
	return out, nil
}

func (r *Runner) record(ctx context.Context, log launcher.Logger, name string, stat launcher.Stat) {
	if r.store != nil {
		if err := r.store.RecordResult(context.WithoutCancel(ctx), name, stat); err != nil {
			log.Error("record result failed", "error", err)
		}
	}
	if r.onFinish != nil {
		r.onFinish(name, stat)
	}
}
