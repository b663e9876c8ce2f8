package dynplugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// Options configures bundle discovery.
type Options struct {
	Dir         string
	Ext         string
	Concurrency int
	// Enabled reports whether a bundle may load. Nil enables all.
	Enabled func(bundle string) bool
	// Configured names bundles that have settings. Names without an
	// archive are reported after each scan.
	Configured []string
	Stdio      Stdio
	Breaker    BreakerSettings
}

// BundleInfo summarises one loaded bundle.
type BundleInfo struct {
	Name  string
	Path  string
	Games []string
}

// Manager discovers foreign games in bundle archives.
type Manager struct {
	scanner *Scanner
	opts    Options
	logger  launcher.Logger

	mu      sync.RWMutex
	bundles []BundleInfo
}

func NewManager(fsys afero.Fs, opts Options, logger launcher.Logger) *Manager {
	logger = logger.With("component", "dynplugin")
	return &Manager{
		scanner: NewScanner(fsys, opts.Dir, opts.Ext, opts.Concurrency, opts.Enabled, logger),
		opts:    opts,
		logger:  logger,
	}
}

// Discover scans the bundle directory and returns one adapter per
// conforming unit. A bundle or unit that fails is logged and skipped.
// Only a directory that cannot be created or listed is an error.
func (m *Manager) Discover(ctx context.Context) ([]*Adapter, error) {
	start := time.Now()
	bundles, err := m.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	m.reportUnmatched(m.scanner.Archives())

	var (
		adapters []*Adapter
		infos    []BundleInfo
	)
	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			for _, a := range adapters {
				a.Release()
			}
			return nil, err
		}
		loaded := m.loadBundle(ctx, b)
		if len(loaded) == 0 {
			continue
		}
		info := BundleInfo{Name: b.Name, Path: b.Path}
		for _, a := range loaded {
			info.Games = append(info.Games, a.Name())
		}
		infos = append(infos, info)
		adapters = append(adapters, loaded...)
	}

	m.mu.Lock()
	m.bundles = infos
	m.mu.Unlock()

	m.logger.Info("bundle discovery finished", "bundles", len(bundles), "games", len(adapters), "duration", time.Since(start))
	return adapters, nil
}

func (m *Manager) reportUnmatched(archives []string) {
	seen := make(map[string]struct{}, len(archives))
	for _, name := range archives {
		seen[name] = struct{}{}
	}
	for _, name := range m.opts.Configured {
		if _, ok := seen[name]; !ok {
			m.logger.Warn("configured bundle not found", "bundle", name, "dir", m.opts.Dir)
		}
	}
}

// Bundles returns the bundles admitted by the last discovery.
func (m *Manager) Bundles() []BundleInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]BundleInfo, len(m.bundles))
	copy(result, m.bundles)
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *Manager) loadBundle(ctx context.Context, b *Bundle) []*Adapter {
	log := m.logger.With("bundle", b.Name)

	var candidates int
	for _, pkg := range b.Packages {
		candidates += len(conforming(pkg.Units))
	}
	if candidates == 0 {
		log.Debug("bundle has no conforming games")
		return nil
	}

	scope, err := newScope(b, m.opts.Stdio)
	if err != nil {
		log.Warn("bundle scope creation failed", "error", err)
		return nil
	}
	// The discovery reference keeps the scope alive until adapters hold theirs.
	defer scope.Release()

	var adapters []*Adapter
	for _, pkg := range b.Packages {
		units := conforming(pkg.Units)
		if len(units) == 0 {
			continue
		}
		alias, err := scope.importPackage(ctx, pkg.ImportPath)
		if err != nil {
			log.Warn("bundle package failed to load", "package", pkg.ImportPath, "error", err)
			continue
		}
		for _, u := range units {
			a, err := m.adapt(ctx, scope, pkg, alias, u, len(units) == 1)
			if err != nil {
				log.Warn("game discarded", "game", u.Name, "error", err)
				continue
			}
			log.Info("game admitted", "game", u.Name, "package", pkg.ImportPath, "via", a.via)
			adapters = append(adapters, a)
		}
	}
	return adapters
}

func (m *Manager) adapt(ctx context.Context, scope *Scope, pkg *Package, alias string, u CodeUnit, sole bool) (*Adapter, error) {
	c := pkg.construction(u, alias, sole)

	listener, bindErr := pkg.listenerExpr(ctx, scope, u, alias)
	if bindErr != nil {
		m.logger.Debug("listener bridge unavailable", "game", u.Name, "error", bindErr)
	}

	name, err := scope.declare(ctx, "launcherShim", func(name string) (string, []importSpec, error) {
		return pkg.shimSource(u, alias, c, listener, name), nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compile shim: %w", err)
	}
	fns, err := loadShim(ctx, scope, name, listener != "")
	if err != nil {
		return nil, fmt.Errorf("load shim: %w", err)
	}
	err = scope.Do(ctx, "instantiate", func(context.Context) error {
		return fns.renew()
	})
	if err != nil {
		return nil, err
	}
	if !scope.acquire() {
		return nil, ErrScopeReleased
	}
	return newAdapter(scope, u, c.via, fns, bindErr, m.opts.Breaker, m.logger), nil
}
