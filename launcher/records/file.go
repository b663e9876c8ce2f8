package records

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

const fileExt = ".txt"

// FileStore keeps the best results of each game in <dir>/<game>.txt,
// one "key|label|value" line per result.
type FileStore struct {
	fs     afero.Fs
	dir    string
	logger launcher.Logger

	mu      sync.Mutex
	records map[string][]launcher.Stat
}

var _ launcher.ScoreStore = (*FileStore)(nil)

// NewFileStore creates dir if needed and loads every record file in it.
func NewFileStore(fsys afero.Fs, dir string, logger launcher.Logger) (*FileStore, error) {
	s := &FileStore{
		fs:      fsys,
		dir:     dir,
		logger:  logger.With("component", "records"),
		records: make(map[string][]launcher.Stat),
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("read records dir: %w", err)
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), fileExt) {
			continue
		}
		game := strings.TrimSuffix(info.Name(), fileExt)
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, info.Name()))
		if err != nil {
			s.logger.Warn("records file unreadable", "file", info.Name(), "error", err)
			continue
		}
		s.records[game] = launcher.TopStats(s.parse(info.Name(), data))
	}
	return nil
}

func (s *FileStore) parse(file string, data []byte) []launcher.Stat {
	var stats []launcher.Stat
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			s.logger.Warn("skipping malformed record", "file", file, "line", n)
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			s.logger.Warn("skipping record with invalid value", "file", file, "line", n, "value", parts[2])
			continue
		}
		stats = append(stats, launcher.Stat{Key: parts[0], Label: parts[1], Value: value})
	}
	return stats
}

// RecordResult inserts stat and keeps the best launcher.MaxRecords.
func (s *FileStore) RecordResult(ctx context.Context, game string, stat launcher.Stat) error {
	name := fileName(game)
	stat = launcher.Stat{Key: cleanField(stat.Key), Label: cleanField(stat.Label), Value: stat.Value}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.records[name]
	next := launcher.TopStats(append(append([]launcher.Stat(nil), current...), stat))
	if err := s.write(name, next); err != nil {
		return err
	}
	s.records[name] = next
	s.logger.Debug("record stored", "game", game, "key", stat.Key, "value", stat.Value)
	return nil
}

func (s *FileStore) write(name string, stats []launcher.Stat) error {
	var buf bytes.Buffer
	for _, stat := range stats {
		fmt.Fprintf(&buf, "%s|%s|%d\n", stat.Key, stat.Label, stat.Value)
	}
	path := filepath.Join(s.dir, name+fileExt)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write records %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace records %s: %w", name, err)
	}
	return nil
}

// BestResults returns up to launcher.MaxRecords results, best first.
func (s *FileStore) BestResults(ctx context.Context, game string) ([]launcher.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.records[fileName(game)]
	result := make([]launcher.Stat, len(current))
	copy(result, current)
	return result, nil
}

// Clear removes the records of one game.
func (s *FileStore) Clear(ctx context.Context, game string) error {
	name := fileName(game)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(filepath.Join(s.dir, name+fileExt)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear records %s: %w", game, err)
	}
	delete(s.records, name)
	return nil
}

// ClearAll removes the records of every game.
func (s *FileStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("read records dir: %w", err)
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), fileExt) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, info.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear records: %w", err)
		}
	}
	s.records = make(map[string][]launcher.Stat)
	return nil
}

func (s *FileStore) Close() error { return nil }

// fileName maps a game name to a safe file stem.
func fileName(game string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(game))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// cleanField keeps a field on a single line without separators.
func cleanField(v string) string {
	return strings.NewReplacer("|", "/", "\r", " ", "\n", " ").Replace(v)
}
