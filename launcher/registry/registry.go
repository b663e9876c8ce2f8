package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// BuiltinPrefixes lists the package paths whose games ship with the launcher.
var BuiltinPrefixes = []string{"github.com/liuran001/GameLauncher-Go/games/"}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("registry closed")

// Entry is one playable game in the catalog.
type Entry struct {
	Name    string
	Game    launcher.Game
	Builtin bool
}

// External is a discovered game that holds resources until released.
type External interface {
	launcher.Game
	Name() string
	Release()
}

// Discoverer finds external games.
type Discoverer interface {
	Discover(ctx context.Context) ([]External, error)
}

// DiscoverFunc adapts a function to Discoverer.
type DiscoverFunc func(ctx context.Context) ([]External, error)

func (f DiscoverFunc) Discover(ctx context.Context) ([]External, error) { return f(ctx) }

// Option customises a Registry.
type Option func(*Registry)

// WithBuiltinPrefixes replaces the package allowlist used to classify
// built-in games.
func WithBuiltinPrefixes(prefixes ...string) Option {
	return func(r *Registry) { r.prefixes = prefixes }
}

// Registry is the game catalog: built-ins fixed at construction merged
// with externals that are replaced wholesale on every reload.
type Registry struct {
	discoverer Discoverer
	logger     launcher.Logger
	prefixes   []string

	mu        sync.RWMutex
	builtins  []Entry
	externals []External
	catalog   []Entry
	index     map[string]int
	loaded    bool
	closed    bool

	reloadMu sync.Mutex
	group    singleflight.Group
}

// New creates a registry. Entries outside the built-in allowlist are
// rejected. Discovery happens lazily on first access.
func New(builtins []Entry, discoverer Discoverer, logger launcher.Logger, opts ...Option) *Registry {
	r := &Registry{
		discoverer: discoverer,
		logger:     logger.With("component", "registry"),
		prefixes:   BuiltinPrefixes,
		index:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, e := range builtins {
		if e.Game == nil || e.Name == "" {
			r.logger.Warn("ignoring invalid built-in entry", "name", e.Name)
			continue
		}
		if !r.isBuiltin(e.Game) {
			r.logger.Warn("ignoring game outside built-in packages", "name", e.Name, "package", packagePath(e.Game))
			continue
		}
		e.Builtin = true
		r.builtins = append(r.builtins, e)
	}
	r.rebuild()
	return r
}

func (r *Registry) isBuiltin(g launcher.Game) bool {
	pkg := packagePath(g)
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(pkg, prefix) {
			return true
		}
	}
	return false
}

func packagePath(g launcher.Game) string {
	t := reflect.TypeOf(g)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.PkgPath()
}

// Load discovers external games once. Later calls are no-ops.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.RLock()
	loaded, closed := r.loaded, r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if loaded {
		return nil
	}
	return r.reload(ctx, true)
}

// ReloadExternal discards every external game and discovers them again.
// Built-ins are untouched. Concurrent callers share one reload.
func (r *Registry) ReloadExternal(ctx context.Context) error {
	return r.reload(ctx, false)
}

func (r *Registry) reload(ctx context.Context, onlyIfUnloaded bool) error {
	_, err, _ := r.group.Do("reload", func() (interface{}, error) {
		r.reloadMu.Lock()
		defer r.reloadMu.Unlock()

		r.mu.RLock()
		skip := r.closed || (onlyIfUnloaded && r.loaded)
		closed := r.closed
		r.mu.RUnlock()
		if closed {
			return nil, ErrClosed
		}
		if skip {
			return nil, nil
		}
		err := r.reloadLocked(ctx)
		if err != nil && onlyIfUnloaded {
			// Reported once; the catalog keeps the built-ins until a reload.
			r.mu.Lock()
			r.loaded = true
			r.mu.Unlock()
		}
		return nil, err
	})
	return err
}

func (r *Registry) reloadLocked(ctx context.Context) error {
	var found []External
	if r.discoverer != nil {
		var err error
		found, err = r.discoverer.Discover(ctx)
		if err != nil {
			return fmt.Errorf("discover games: %w", err)
		}
	}

	externals := make([]External, 0, len(found))
	for _, g := range found {
		if g == nil {
			continue
		}
		if g.Name() == "" {
			r.logger.Warn("ignoring external game without a name")
			g.Release()
			continue
		}
		externals = append(externals, g)
	}

	r.mu.Lock()
	old := r.externals
	r.externals = externals
	r.rebuild()
	r.loaded = true
	total := len(r.catalog)
	r.mu.Unlock()

	for _, g := range old {
		g.Release()
	}
	r.logger.Info("game catalog loaded", "builtin", len(r.builtins), "external", len(externals), "total", total)
	return nil
}

// rebuild merges built-ins then externals. A later entry with an existing
// name replaces it in place.
func (r *Registry) rebuild() {
	catalog := make([]Entry, 0, len(r.builtins)+len(r.externals))
	index := make(map[string]int, cap(catalog))
	add := func(e Entry) {
		if i, ok := index[e.Name]; ok {
			r.logger.Debug("game name overridden", "name", e.Name, "builtin", e.Builtin)
			catalog[i] = e
			return
		}
		index[e.Name] = len(catalog)
		catalog = append(catalog, e)
	}
	for _, e := range r.builtins {
		add(e)
	}
	for _, g := range r.externals {
		add(Entry{Name: g.Name(), Game: g})
	}
	r.catalog = catalog
	r.index = index
}

func (r *Registry) ensureLoaded() {
	if err := r.Load(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
		r.logger.Error("game catalog load failed", "error", err)
	}
}

// List returns a snapshot of the catalog in display order.
func (r *Registry) List() []Entry {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.catalog))
	result = append(result, r.catalog...)
	return result
}

// Count returns the number of catalog entries.
func (r *Registry) Count() int {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.catalog)
}

// Get looks up an entry by display name. It returns launcher.ErrNotFound
// when no entry has that name.
func (r *Registry) Get(name string) (Entry, error) {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%s: %w", name, launcher.ErrNotFound)
	}
	return r.catalog[i], nil
}

// Close releases every external game. The registry is unusable afterwards.
func (r *Registry) Close() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	old := r.externals
	r.externals = nil
	r.closed = true
	r.rebuild()
	r.mu.Unlock()

	for _, g := range old {
		g.Release()
	}
	return nil
}
