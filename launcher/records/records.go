// Package records persists the best results of each game.
package records

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/liuran001/GameLauncher-Go/launcher"
	logpkg "github.com/liuran001/GameLauncher-Go/launcher/logger"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a score store backend.
type Options struct {
	Backend      string
	Dir          string
	Database     string
	GormLogLevel string
}

// Open creates the configured score store.
func Open(fsys afero.Fs, opts Options, logger *logpkg.Logger) (launcher.ScoreStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFileStore(fsys, opts.Dir, logger)
	case BackendSQLite:
		base := slog.Default()
		if logger != nil {
			base = logger.Slog()
		}
		return NewSQLiteStore(opts.Database, logpkg.NewGormLogger(base, logpkg.GormLevel(opts.GormLogLevel)))
	default:
		return nil, fmt.Errorf("unknown records backend %q", opts.Backend)
	}
}
