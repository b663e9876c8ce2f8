package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	_ "github.com/liuran001/GameLauncher-Go/games/clicker"
	_ "github.com/liuran001/GameLauncher-Go/games/dice"
	_ "github.com/liuran001/GameLauncher-Go/games/tictactoe"
	"github.com/liuran001/GameLauncher-Go/launcher"
	"github.com/liuran001/GameLauncher-Go/launcher/builtin"
	"github.com/liuran001/GameLauncher-Go/launcher/config"
	"github.com/liuran001/GameLauncher-Go/launcher/console"
	"github.com/liuran001/GameLauncher-Go/launcher/dynplugin"
	logpkg "github.com/liuran001/GameLauncher-Go/launcher/logger"
	"github.com/liuran001/GameLauncher-Go/launcher/records"
	"github.com/liuran001/GameLauncher-Go/launcher/registry"
	"github.com/liuran001/GameLauncher-Go/launcher/session"
	"github.com/liuran001/GameLauncher-Go/launcher/watcher"
	"github.com/liuran001/GameLauncher-Go/launcher/worker"
)

// App wires all application dependencies.
type App struct {
	Config   *config.Config
	Logger   *logpkg.Logger
	Store    launcher.ScoreStore
	Pool     *worker.Pool
	Bundles  *dynplugin.Manager
	Registry *registry.Registry
	Sessions *session.Runner
	Console  *console.Console
	Watcher  *watcher.Watcher
	Build    BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// Options are the process resources the application runs with.
type Options struct {
	ConfigPath string
	// Config replaces loading ConfigPath when set.
	Config *config.Config
	// FS defaults to the OS filesystem.
	FS     afero.Fs
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Build  BuildInfo
}

// New builds the application container.
func New(ctx context.Context, opts Options) (*App, error) {
	conf := opts.Config
	if conf == nil {
		var err error
		conf, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	// Menu, built-in games and bundle code all read this one buffer.
	in := bufio.NewReader(stdin)

	log, err := logpkg.New(logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
		Stdout:    conf.GetBool("LogStdout"),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := records.Open(fsys, records.Options{
		Backend:      conf.GetString("RecordsBackend"),
		Dir:          conf.GetString("RecordsDir"),
		Database:     conf.GetString("Database"),
		GormLogLevel: conf.GetString("GormLogLevel"),
	}, log)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("init records: %w", err)
	}

	pool := worker.New(conf.GetInt("WorkerPoolSize"))

	bundleDir := conf.GetString("BundleDir")
	bundleExt := conf.GetString("BundleExt")
	bundles := dynplugin.NewManager(fsys, dynplugin.Options{
		Dir:         bundleDir,
		Ext:         bundleExt,
		Concurrency: conf.GetInt("ScanConcurrency"),
		Enabled:     conf.PluginEnabled,
		Configured:  conf.PluginNames(),
		Stdio:       dynplugin.Stdio{Stdin: in, Stdout: stdout, Stderr: stderr},
		Breaker: dynplugin.BreakerSettings{
			MaxFailures: conf.GetInt("BreakerMaxFailures"),
			Cooldown:    time.Duration(conf.GetInt("BreakerCooldownSec")) * time.Second,
		},
	}, log)

	deps := builtin.Deps{In: in, Out: stdout, Logger: log}
	var entries []registry.Entry
	for _, name := range builtin.Names() {
		factory, _ := builtin.Get(name)
		game, err := factory(deps)
		if err != nil {
			log.Error("built-in game init failed", "game", name, "error", err)
			continue
		}
		entries = append(entries, registry.Entry{Name: name, Game: game})
	}

	reg := registry.New(entries, registry.DiscoverFunc(func(ctx context.Context) ([]registry.External, error) {
		adapters, err := bundles.Discover(ctx)
		if err != nil {
			return nil, err
		}
		found := make([]registry.External, 0, len(adapters))
		for _, a := range adapters {
			found = append(found, a)
		}
		return found, nil
	}), log)

	menu := console.New(in, stdout, reg, nil, store, log)
	runner := session.New(store, pool, log, menu.Notify)
	menu.SetPlayer(runner)

	var watch *watcher.Watcher
	if conf.GetBool("WatchBundles") {
		watch = watcher.New(reg, watcher.Options{
			Dir:         bundleDir,
			Ext:         bundleExt,
			Debounce:    time.Duration(conf.GetInt("WatchDebounceMs")) * time.Millisecond,
			MinInterval: time.Duration(conf.GetInt("ReloadMinIntervalSec")) * time.Second,
		}, log)
	}

	return &App{
		Config:   conf,
		Logger:   log,
		Store:    store,
		Pool:     pool,
		Bundles:  bundles,
		Registry: reg,
		Sessions: runner,
		Console:  menu,
		Watcher:  watch,
		Build:    opts.Build,
	}, nil
}

// Run loads the catalog and serves the menu until the player quits.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("game launcher starting", "version", a.Build.BinVersion, "runtime", a.Build.RuntimeVer)
	if err := a.Registry.Load(ctx); err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	for _, b := range a.Bundles.Bundles() {
		a.Logger.Info("bundle loaded", "bundle", b.Name, "games", b.Games)
	}

	if a.Watcher != nil {
		go func() {
			if err := a.Watcher.Run(ctx); err != nil {
				a.Logger.Error("bundle watcher stopped", "error", err)
			}
		}()
	}
	return a.Console.Run(ctx)
}

// Shutdown releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close registry: %w", err)
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close records", "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("close records: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}
