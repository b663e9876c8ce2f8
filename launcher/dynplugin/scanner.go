package dynplugin

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

const maxSourceSize = 4 << 20

var errNoSources = errors.New("bundle contains no go sources")

// Bundle is a parsed archive of Go sources.
type Bundle struct {
	Name     string
	Path     string
	Packages []*Package

	fset    *token.FileSet
	sources map[string][]byte
}

// Units returns every candidate unit of every package, in scan order.
func (b *Bundle) Units() []CodeUnit {
	var out []CodeUnit
	for _, pkg := range b.Packages {
		out = append(out, pkg.Units...)
	}
	return out
}

// Scanner enumerates bundle archives in a directory.
type Scanner struct {
	fs          afero.Fs
	dir         string
	ext         string
	concurrency int
	enabled     func(name string) bool
	logger      launcher.Logger

	mu       sync.Mutex
	archives []string
}

func NewScanner(fsys afero.Fs, dir, ext string, concurrency int, enabled func(string) bool, logger launcher.Logger) *Scanner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if ext == "" {
		ext = ".zip"
	}
	return &Scanner{fs: fsys, dir: dir, ext: ext, concurrency: concurrency, enabled: enabled, logger: logger}
}

// Scan reads every bundle in the directory, creating it when absent.
// Bundles that cannot be read are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) ([]*Bundle, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle dir %s: %w", s.dir, err)
	}
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("read bundle dir %s: %w", s.dir, err)
	}

	var paths []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(info.Name()), strings.ToLower(s.ext)) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, info.Name()))
	}
	sort.Strings(paths)

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, BundleName(p, s.ext))
	}
	s.mu.Lock()
	s.archives = names
	s.mu.Unlock()

	results := make([]*Bundle, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		name := BundleName(p, s.ext)
		if s.enabled != nil && !s.enabled(name) {
			s.logger.Info("bundle disabled by config", "bundle", name)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := s.open(p, name)
			if err != nil {
				s.logger.Warn("skipping unreadable bundle", "bundle", name, "path", p, "error", err)
				return nil
			}
			results[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundles := make([]*Bundle, 0, len(results))
	for _, b := range results {
		if b != nil {
			bundles = append(bundles, b)
		}
	}
	return bundles, nil
}

// Archives returns the names of every archive seen by the last scan,
// disabled ones included.
func (s *Scanner) Archives() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.archives...)
}

func (s *Scanner) open(p, name string) (*Bundle, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return ReadBundle(zr, name, p)
}

// BundleName derives the bundle name from its archive path.
func BundleName(p, ext string) string {
	base := filepath.Base(p)
	if strings.HasSuffix(strings.ToLower(base), strings.ToLower(ext)) {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// ReadBundle parses the Go sources of an archive into packages.
func ReadBundle(zr *zip.Reader, name, archivePath string) (*Bundle, error) {
	byDir := make(map[string]map[string][]byte)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		clean := path.Clean(strings.ReplaceAll(zf.Name, "\\", "/"))
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, fmt.Errorf("entry %q escapes the archive", zf.Name)
		}
		if !wantSource(clean) {
			continue
		}
		if zf.UncompressedSize64 > maxSourceSize {
			return nil, fmt.Errorf("entry %q is too large", zf.Name)
		}
		src, err := readEntry(zf)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", zf.Name, err)
		}
		dir := path.Dir(clean)
		if byDir[dir] == nil {
			byDir[dir] = make(map[string][]byte)
		}
		byDir[dir][path.Base(clean)] = src
	}
	if len(byDir) == 0 {
		return nil, errNoSources
	}

	b := &Bundle{
		Name:    name,
		Path:    archivePath,
		fset:    token.NewFileSet(),
		sources: make(map[string][]byte),
	}
	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		importPath := dir
		if dir == "." {
			importPath = sanitizeImportPath(name)
		}
		pkg, err := b.parsePackage(importPath, byDir[dir])
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", importPath, err)
		}
		if pkg == nil {
			continue
		}
		b.Packages = append(b.Packages, pkg)
		for file, src := range byDir[dir] {
			b.sources[path.Join("src", importPath, file)] = src
		}
	}
	return b, nil
}

func (b *Bundle) parsePackage(importPath string, files map[string][]byte) (*Package, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		pkgName string
		parsed  []*sourceFile
	)
	for _, name := range names {
		src := files[name]
		file, err := parser.ParseFile(b.fset, path.Join(importPath, name), src, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		if pkgName != "" && file.Name.Name != pkgName {
			return nil, fmt.Errorf("mixed package names %s and %s", pkgName, file.Name.Name)
		}
		pkgName = file.Name.Name
		parsed = append(parsed, &sourceFile{
			name: name,
			src:  src,
			file: file,
			tok:  b.fset.File(file.Pos()),
		})
	}
	if pkgName == "main" {
		return nil, nil
	}
	return newPackage(pkgName, importPath, parsed), nil
}

func readEntry(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxSourceSize))
}

// wantSource follows the go tool: test files, testdata and names starting
// with "_" or "." are ignored.
func wantSource(p string) bool {
	if !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == "testdata" || strings.HasPrefix(part, "_") || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

func sanitizeImportPath(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') || out[0] == '_' {
		out = "bundle" + out
	}
	return out
}
