// Package watcher reloads external games when the bundle directory changes.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// Reloader rediscovers external games.
type Reloader interface {
	ReloadExternal(ctx context.Context) error
}

type Options struct {
	Dir string
	Ext string
	// Debounce is how long the directory must stay quiet before a reload.
	Debounce time.Duration
	// MinInterval is the minimum time between two reloads.
	MinInterval time.Duration
}

type Watcher struct {
	reloader Reloader
	opts     Options
	logger   launcher.Logger
}

func New(reloader Reloader, opts Options, logger launcher.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Ext == "" {
		opts.Ext = ".zip"
	}
	return &Watcher{
		reloader: reloader,
		opts:     opts,
		logger:   logger.With("component", "watcher"),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}

	limit := rate.Inf
	if w.opts.MinInterval > 0 {
		limit = rate.Every(w.opts.MinInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info("watching bundle directory", "dir", w.opts.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("bundle change", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := w.reloader.ReloadExternal(ctx); err != nil {
				w.logger.Error("bundle reload failed", "error", err)
				continue
			}
			w.logger.Info("bundles reloaded after change")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(strings.ToLower(ev.Name), strings.ToLower(w.opts.Ext)) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
