package launcher

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Game is the capability every catalog entry exposes, built-in or adapted.
type Game interface {
	// Start runs one play session. It may block until the session ends.
	Start(ctx context.Context) error
	// Stats reports the outcome of the most recent session.
	Stats(ctx context.Context) Stat
	// SetListener installs the callback notified when a session finishes.
	SetListener(listener Listener)
}

// ScoreStore persists the best results per game name.
type ScoreStore interface {
	RecordResult(ctx context.Context, game string, stat Stat) error
	BestResults(ctx context.Context, game string) ([]Stat, error)
	Clear(ctx context.Context, game string) error
	ClearAll(ctx context.Context) error
	Close() error
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	SubmitWaitContext(ctx context.Context, task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}
