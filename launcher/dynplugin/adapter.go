package dynplugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// BreakerSettings controls when repeated start failures stop a foreign game.
type BreakerSettings struct {
	MaxFailures int
	Cooldown    time.Duration
}

type unitFuncs struct {
	renew func() error
	start func() error
	stats func() interface{}
	bind  func(func(interface{})) error
}

// Adapter exposes a foreign unit through launcher.Game. Every call runs
// inside the unit's bundle scope.
type Adapter struct {
	name    string
	unit    CodeUnit
	via     string
	scope   *Scope
	fns     unitFuncs
	bindErr error
	breaker *gobreaker.CircuitBreaker
	logger  launcher.Logger

	mu       sync.Mutex
	listener launcher.Listener
	released bool
}

var _ launcher.Game = (*Adapter)(nil)

func newAdapter(scope *Scope, u CodeUnit, via string, fns unitFuncs, bindErr error, breaker BreakerSettings, logger launcher.Logger) *Adapter {
	a := &Adapter{
		name:    u.Name,
		unit:    u,
		via:     via,
		scope:   scope,
		fns:     fns,
		bindErr: bindErr,
		logger:  logger.With("game", u.Name, "bundle", scope.Name()),
	}
	maxFailures := breaker.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "game:" + u.QualifiedName(),
		MaxRequests: 1,
		Timeout:     breaker.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Info("game breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return a
}

// Name is the unit's simple type name.
func (a *Adapter) Name() string { return a.name }

// Bundle is the name of the archive the unit came from.
func (a *Adapter) Bundle() string { return a.scope.Name() }

// Unit describes the adapted code unit.
func (a *Adapter) Unit() CodeUnit { return a.unit }

// Start refreshes the instance and runs it. The current listener is
// re-bound to the new instance before it starts.
func (a *Adapter) Start(ctx context.Context) error {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, a.scope.Do(ctx, opStart, func(ctx context.Context) error {
			if err := a.fns.renew(); err != nil {
				return fmt.Errorf("create instance: %w", err)
			}
			a.mu.Lock()
			l := a.listener
			a.mu.Unlock()
			if l != nil {
				if err := a.bind(l); err != nil {
					a.logger.Warn("listener not installed", "error", err)
				}
			}
			return a.fns.start()
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("game disabled after repeated failures: %w", err)
		}
		a.logger.Warn("game start failed", "error", err)
		return &launcher.PlayError{Game: a.name, Err: err}
	}
	return nil
}

// Stats reads the current instance's result; failures yield ErrorStat.
func (a *Adapter) Stats(ctx context.Context) launcher.Stat {
	stat := launcher.ErrorStat
	err := a.scope.Do(ctx, opStats, func(ctx context.Context) error {
		res, err := ReadForeign(a.fns.stats())
		if err != nil {
			return err
		}
		stat = res.Stat()
		return nil
	})
	if err != nil {
		a.logger.Warn("game stats unavailable", "error", err)
		return launcher.ErrorStat
	}
	return stat
}

// SetListener stores the listener and installs it on the current instance.
func (a *Adapter) SetListener(l launcher.Listener) {
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()

	err := a.scope.Do(context.Background(), opListener, func(ctx context.Context) error {
		return a.bind(l)
	})
	if err != nil {
		a.logger.Warn("listener not installed", "error", err)
	}
}

func (a *Adapter) bind(l launcher.Listener) error {
	if a.fns.bind == nil {
		if a.bindErr != nil {
			return fmt.Errorf("no listener bridge: %w", a.bindErr)
		}
		return fmt.Errorf("no listener bridge")
	}
	return a.fns.bind(a.forward(l))
}

// forward returns the host function foreign notifications arrive on.
func (a *Adapter) forward(l launcher.Listener) func(interface{}) {
	return func(raw interface{}) {
		if l == nil {
			return
		}
		res, err := ReadForeign(raw)
		if err != nil {
			a.logger.Warn("dropping unreadable game result", "error", err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("game listener panicked", "panic", r)
			}
		}()
		l.GameFinished(res.Stat())
	}
}

// Release drops the adapter's hold on its bundle scope.
func (a *Adapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.released = true
	a.scope.Release()
}
